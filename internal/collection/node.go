package collection

import (
	"context"
	"sync"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/metadata"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/transport"
)

// DirectConfig names §4.5.3's "_direct_communication" tunables.
type DirectConfig struct {
	MaximumNumberOfParallelStreams int
	MaximumTransferSize            domain.Size
}

// IndirectConfig names §4.5.3's indirect-transfer tunables.
type IndirectConfig struct {
	NumberOfBuffers                  uint32
	MaximumTransferSize              domain.Size
	MaximumNumberOfParallelStreams   int
	AcquireBufferTimeoutMilliseconds int
}

// Node is the process-wide collection-engine context every open
// Collection on this process shares: the meta-data workspace, the
// transport client cache, the shared-buffer registry, the single
// communication buffer, and the collection-create/delete mutex §4.5.2 and
// §4.5.5 both name explicitly.
type Node struct {
	Workspace *metadata.Workspace
	Clients   *transport.ClientCache
	Buffers   *BufferRegistry
	Comm      *CommBuffer
	Direct    DirectConfig
	Indirect  IndirectConfig

	directTokens   chan struct{}
	createDeleteMu sync.Mutex
}

// NewNode wires together an already-constructed Workspace, ClientCache,
// BufferRegistry and CommBuffer with the direct/indirect tunables.
func NewNode(ws *metadata.Workspace, clients *transport.ClientCache, buffers *BufferRegistry, comm *CommBuffer, direct DirectConfig, indirect IndirectConfig) *Node {
	return &Node{
		Workspace: ws, Clients: clients, Buffers: buffers, Comm: comm,
		Direct: direct, Indirect: indirect,
		directTokens: make(chan struct{}, direct.MaximumNumberOfParallelStreams),
	}
}

// allocatePlacement runs AsEqualAsPossible over candidates for size bytes,
// then asks each chosen storage's provider to create the Segment backing
// its share, building a fresh zero-based Placement (§4.5.1).
func (n *Node) allocatePlacement(ctx context.Context, candidates []Candidate, size domain.Size) (*Placement, error) {
	entries, err := n.createSegments(ctx, candidates, size, 0)
	if err != nil {
		return nil, err
	}
	return Construct(entries)
}

// createSegments is allocatePlacement's shared core, also used by
// Collection.growBy to extend an existing placement: shares start at
// offsetBegin instead of 0.
func (n *Node) createSegments(ctx context.Context, candidates []Candidate, size domain.Size, offsetBegin domain.Offset) ([]Entry, error) {
	if size == 0 {
		return nil, nil
	}
	shares, err := asEqualAsPossible(candidates, size)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(shares))
	rollback := func(created []Entry) {
		for _, e := range created {
			if cl, err := n.Clients.Get(ctx, e.Endpoint); err == nil {
				_, _ = cl.SegmentRemove(e.Storage, e.Segment)
			}
		}
	}
	for i, s := range shares {
		cl, err := n.Clients.Get(ctx, s.Endpoint)
		if err != nil {
			rollback(entries[:i])
			return nil, err
		}
		seg, err := cl.SegmentCreate(s.Storage, domain.Size(s.Range.Length))
		if err != nil {
			rollback(entries[:i])
			return nil, err
		}
		entries[i] = Entry{
			Storage:  s.Storage,
			Segment:  seg,
			Endpoint: s.Endpoint,
			Range:    domain.Range{Begin: offsetBegin + s.Range.Begin, Length: s.Range.Length},
		}
	}
	return entries, nil
}

// Close closes the comm buffer, shared-buffer registry and client cache.
func (n *Node) Close() error {
	var firstErr error
	if err := n.Comm.Close(); err != nil {
		firstErr = err
	}
	if err := n.Buffers.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := n.Clients.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
