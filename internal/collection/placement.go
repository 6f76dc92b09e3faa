// Package collection implements the distributed collection engine (§4.5):
// placement (this file), the shared-buffer registry and communication
// buffer, and the read/write request pipeline with its direct/indirect
// transfer split.
package collection

import (
	"sync"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/transport"
)

// Entry is one storage's dedicated Segment inside a collection's
// placement: a contiguous, collection-relative byte Range backed entirely
// by Storage/Segment on Endpoint.
type Entry struct {
	Storage  domain.StorageId
	Segment  domain.SegmentId
	Endpoint transport.Endpoint
	Range    domain.Range
}

// Location is one Entry's overlap with a requested Range, clipped to that
// request, in ascending Range order. EntryBegin is the owning Entry's own
// Range.Begin, kept around so a caller can translate a further-clipped
// sub-range back into a storage-relative offset (sub.Begin - EntryBegin).
type Location struct {
	Endpoint   transport.Endpoint
	Storage    domain.StorageId
	Segment    domain.SegmentId
	Range      domain.Range
	EntryBegin domain.Offset
}

// Placement is a collection's UsedStorages (§4.5.1): an ordered, gapless
// run of Entries, each Range touching the next, starting at 0. It is the
// Go analogue of blockdevice.Device for the collection engine's own byte
// addressing — same "sorted, non-overlapping span meta-data" shape, but
// keyed by construction order rather than a btree, since a collection's
// entries are built once (at open/create) and only ever grow by
// appending at the end, never by arbitrary insertion or removal.
type Placement struct {
	mu      sync.RWMutex
	entries []Entry
}

// Construct validates entries are pairwise touching and carry no
// duplicate storage ids, the invariants named in §4.5.1.
func Construct(entries []Entry) (*Placement, error) {
	seen := make(map[domain.StorageId]bool, len(entries))
	for i, e := range entries {
		if seen[e.Storage] {
			return nil, &domain.EmplaceDuplicateError{StorageID: e.Storage}
		}
		seen[e.Storage] = true
		if i > 0 {
			prev := entries[i-1]
			if !prev.Range.Touches(e.Range) {
				return nil, &domain.RangesAreNotTouchingError{Small: prev.Range, Large: e.Range}
			}
		}
	}
	return &Placement{entries: append([]Entry(nil), entries...)}, nil
}

// Append extends the placement with one more Entry, touching the current
// end. Duplicate storage ids and gaps/overlaps are rejected the same way
// Construct rejects them, just against a single new entry instead of a
// whole batch (§4.5.1's Append::RangesAreNotTouching/Emplace::Duplicate).
func (p *Placement) Append(e Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ex := range p.entries {
		if ex.Storage == e.Storage {
			return &domain.EmplaceDuplicateError{StorageID: e.Storage}
		}
	}
	if n := len(p.entries); n > 0 {
		last := p.entries[n-1]
		if !last.Range.Touches(e.Range) {
			return &domain.AppendRangesAreNotTouchingError{Existing: last.Range, ToAppend: e.Range}
		}
	} else if e.Range.Begin != 0 {
		return &domain.AppendRangesAreNotTouchingError{Existing: domain.Range{}, ToAppend: e.Range}
	}
	p.entries = append(p.entries, e)
	return nil
}

// AppendBlock extends the placement with one freshly-allocated block of
// entries — the whole result of a single AsEqualAsPossible split, as
// produced when growing an Unknown-size_max collection (§4.5.2's
// collection_append re-runs the placement policy over the same candidate
// list on each growth). Duplicate storage ids are rejected only within
// this block, not against entries from earlier blocks: §3/§4.5.1 forbid
// duplicates within one UsedStorages block, and a later growth reusing a
// storage id an earlier block already used is exactly what repeated
// growth over the same candidates produces. The block as a whole must
// touch the placement's current end.
func (p *Placement) AppendBlock(block []Entry) error {
	if len(block) == 0 {
		return nil
	}

	seen := make(map[domain.StorageId]bool, len(block))
	for i, e := range block {
		if seen[e.Storage] {
			return &domain.EmplaceDuplicateError{StorageID: e.Storage}
		}
		seen[e.Storage] = true
		if i > 0 {
			prev := block[i-1]
			if !prev.Range.Touches(e.Range) {
				return &domain.RangesAreNotTouchingError{Small: prev.Range, Large: e.Range}
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	first := block[0]
	if n := len(p.entries); n > 0 {
		last := p.entries[n-1]
		if !last.Range.Touches(first.Range) {
			return &domain.AppendRangesAreNotTouchingError{Existing: last.Range, ToAppend: first.Range}
		}
	} else if first.Range.Begin != 0 {
		return &domain.AppendRangesAreNotTouchingError{Existing: domain.Range{}, ToAppend: first.Range}
	}

	p.entries = append(p.entries, block...)
	return nil
}

// Size is the collection's current addressable end, the exclusive end of
// the last entry (0 if the placement is empty).
func (p *Placement) Size() domain.Size {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.entries) == 0 {
		return 0
	}
	return domain.Size(p.entries[len(p.entries)-1].Range.End())
}

// Entries returns a snapshot copy of the placement's entries, in
// ascending range order.
func (p *Placement) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Locate returns every Entry overlapping r, clipped to r, in ascending
// range order (§4.5.2 step 2).
func (p *Placement) Locate(r domain.Range) []Location {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []Location
	for _, e := range p.entries {
		if !e.Range.Overlaps(r) {
			continue
		}
		begin := e.Range.Begin
		if r.Begin > begin {
			begin = r.Begin
		}
		end := e.Range.End()
		if r.End() < end {
			end = r.End()
		}
		out = append(out, Location{
			Endpoint:   e.Endpoint,
			Storage:    e.Storage,
			Segment:    e.Segment,
			Range:      domain.Range{Begin: begin, Length: domain.Size(end - begin)},
			EntryBegin: e.Range.Begin,
		})
	}
	return out
}
