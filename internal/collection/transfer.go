package collection

import (
	"context"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// splitTransfer breaks r into consecutive sub-ranges no longer than max
// (0 or >= r.Length means no split is needed).
func splitTransfer(r domain.Range, max domain.Size) []domain.Range {
	if max == 0 || r.Length <= max {
		return []domain.Range{r}
	}
	var out []domain.Range
	begin := r.Begin
	remaining := r.Length
	for remaining > 0 {
		take := max
		if remaining < take {
			take = remaining
		}
		out = append(out, domain.Range{Begin: begin, Length: take})
		begin += domain.Offset(take)
		remaining -= take
	}
	return out
}

// classify implements §4.5.2 step 3: direct if buf lies entirely inside a
// registered shared buffer, indirect if it overlaps none, and a refused
// Unsupported request if it only partially overlaps one.
func (c *Collection) classify(buf []byte) (Classification, error) {
	switch kind := c.node.Buffers.Classify(buf); kind {
	case Direct, Indirect:
		return kind, nil
	default:
		return kind, &domain.UnsupportedError{Reason: "caller buffer partially overlaps a registered shared buffer"}
	}
}

// Read implements §4.5.2's read(collection, buffer, offset): negative
// offset rejected up front (§8), bounds check, locate, classify, dispatch.
func (c *Collection) Read(ctx context.Context, buf []byte, offset domain.Offset) (domain.Size, error) {
	if offset < 0 {
		return 0, &domain.NegativeOffsetError{Offset: offset}
	}
	r := domain.Range{Begin: offset, Length: domain.Size(len(buf))}
	if domain.Size(r.End()) > c.placement.Size() {
		return 0, &domain.RangeOutOfBoundsError{Requested: r, End: domain.Offset(c.placement.Size())}
	}
	kind, err := c.classify(buf)
	if err != nil {
		return 0, err
	}
	locs := c.placement.Locate(r)
	if kind == Direct {
		return c.directTransfer(ctx, buf, r, locs, false)
	}
	return c.indirectTransfer(ctx, buf, r, locs, false)
}

// Write implements §4.5.2's write(collection, buffer, offset): negative
// offset rejected up front (§8), bounds check (growing the collection via
// collection_append when size_max is Unknown and the write reaches past
// the current end), locate, classify, dispatch.
func (c *Collection) Write(ctx context.Context, buf []byte, offset domain.Offset, candidates []Candidate) (domain.Size, error) {
	if offset < 0 {
		return 0, &domain.NegativeOffsetError{Offset: offset}
	}
	r := domain.Range{Begin: offset, Length: domain.Size(len(buf))}
	if domain.Size(r.End()) > c.placement.Size() {
		if !c.sizeMax.IsUnlimited() {
			limit, _ := c.sizeMax.Value()
			return 0, &domain.WriteAfterMaxSizeError{CollectionID: c.id, Max: limit, End: r.End()}
		}
		if err := c.growBy(ctx, r.End(), candidates); err != nil {
			return 0, err
		}
	}
	kind, err := c.classify(buf)
	if err != nil {
		return 0, err
	}
	locs := c.placement.Locate(r)
	if kind == Direct {
		return c.directTransfer(ctx, buf, r, locs, true)
	}
	return c.indirectTransfer(ctx, buf, r, locs, true)
}
