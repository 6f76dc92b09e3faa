package collection

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/metadata"
)

// NewID mints a fresh collection id, the uuid that keys the collection's
// meta-data (mcs_iov_backend_<uuid>, §4.5.1) — the same counter-seeded
// identifier scheme the teacher names its own Storage instances with,
// generalized here to an actual RFC 4122 UUID since collection ids must
// be globally unique across nodes, not just process-local.
func NewID() string { return uuid.NewString() }

// Collection is one open handle onto a distributed, growable byte range
// (§4.5): its placement (UsedStorages) plus the Node context it dispatches
// reads/writes through.
type Collection struct {
	node    *Node
	id      string
	sizeMax domain.MaxSize

	placement *Placement // has its own internal lock
}

// ID returns the collection's meta-data key id.
func (c *Collection) ID() string { return c.id }

// placementSizeFor picks the byte size a placement should be built at:
// the declared limit if size_max is bounded (§4.5.1: "placement...
// determined at creation from the configured max size"), otherwise
// whatever the caller already knows the collection's current size to be
// (0 for a brand new Unknown-size_max collection, the recorded meta-data
// size for one being reopened).
func placementSizeFor(info metadata.CollectionInformation, knownSize domain.Size) domain.Size {
	if limit, bounded := info.SizeMax.Value(); bounded {
		return limit
	}
	return knownSize
}

// CreateCollection implements collection_open for a brand-new collection:
// builds its initial placement from candidates, then writes the
// meta-data record. Fails if id is already present in meta-data.
func CreateCollection(ctx context.Context, node *Node, id string, info metadata.CollectionInformation, candidates []Candidate) (*Collection, error) {
	node.createDeleteMu.Lock()
	defer node.createDeleteMu.Unlock()

	exists, err := node.Workspace.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &domain.UnsupportedError{Reason: fmt.Sprintf("collection already exists: %s", id)}
	}

	initial := placementSizeFor(info, 0)
	placement, err := node.allocatePlacement(ctx, candidates, initial)
	if err != nil {
		return nil, err
	}

	if err := node.Workspace.Open(ctx, id, info); err != nil {
		return nil, err
	}
	if initial > 0 {
		if err := node.Workspace.SetSize(ctx, id, initial); err != nil {
			node.Workspace.Delete(ctx, id) // never existed from the caller's POV
			return nil, err
		}
	}
	return &Collection{node: node, id: id, sizeMax: info.SizeMax, placement: placement}, nil
}

// OpenCollection reopens a collection whose meta-data record already
// exists, rebuilding its placement deterministically: same candidate list
// and the same AsEqualAsPossible policy used at creation, sized either to
// the declared size_max (bounded collections) or the size meta-data last
// recorded (Unknown collections, which may have grown since creation).
// spec.md names no dedicated "describe existing placement" RPC, so a
// fresh, policy-equivalent placement is the deterministic reconstruction
// available given only what §4.5.1's meta-data record actually stores.
func OpenCollection(ctx context.Context, node *Node, id string, candidates []Candidate) (*Collection, error) {
	node.createDeleteMu.Lock()
	defer node.createDeleteMu.Unlock()

	info, err := node.Workspace.Info(ctx, id)
	if err != nil {
		return nil, err
	}
	size, err := node.Workspace.Size(ctx, id)
	if err != nil {
		return nil, err
	}

	placement, err := node.allocatePlacement(ctx, candidates, placementSizeFor(info, size))
	if err != nil {
		return nil, err
	}
	return &Collection{node: node, id: id, sizeMax: info.SizeMax, placement: placement}, nil
}

// Delete implements collection_delete (§4.5.5): destroy every placement
// entry's Segment first, then remove the meta-data record. A meta-data
// removal failure after the segments are already gone is surfaced as-is,
// matching metadata.Workspace.Delete's no-rollback behavior — the
// physical state is already gone and re-deleting isn't mandated.
func (c *Collection) Delete(ctx context.Context) error {
	c.node.createDeleteMu.Lock()
	defer c.node.createDeleteMu.Unlock()

	for _, e := range c.placement.Entries() {
		cl, err := c.node.Clients.Get(ctx, e.Endpoint)
		if err != nil {
			return err
		}
		if _, err := cl.SegmentRemove(e.Storage, e.Segment); err != nil {
			return err
		}
	}
	return c.node.Workspace.Delete(ctx, c.id)
}

// growBy implements §4.5.2 step 1's collection_append: only valid when
// size_max is Unknown, it extends the placement to cover newEnd and
// records the new size in meta-data. A no-op if the placement already
// reaches newEnd.
func (c *Collection) growBy(ctx context.Context, newEnd domain.Offset, candidates []Candidate) error {
	c.node.createDeleteMu.Lock()
	defer c.node.createDeleteMu.Unlock()

	if !c.sizeMax.IsUnlimited() {
		limit, _ := c.sizeMax.Value()
		return &domain.WriteAfterMaxSizeError{CollectionID: c.id, Max: limit, End: newEnd}
	}
	curSize := c.placement.Size()
	if domain.Size(newEnd) <= curSize {
		return nil
	}
	need := domain.Size(newEnd) - curSize
	entries, err := c.node.createSegments(ctx, candidates, need, domain.Offset(curSize))
	if err != nil {
		return err
	}
	if err := c.placement.AppendBlock(entries); err != nil {
		return err
	}
	return c.node.Workspace.SetSize(ctx, c.id, domain.Size(newEnd))
}
