package collection

import (
	"context"
	"testing"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/metadata"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/registry"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/transport"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/wire"
)

// mergedCommands serves both control and transport requests off a single
// provider, since a Node's Clients dial one endpoint per storage for both
// segment management and memory get/put.
func mergedCommands() map[wire.CommandKind]bool {
	out := make(map[wire.CommandKind]bool, len(wire.ControlCommandSet)+len(wire.TransportCommandSet))
	for k, v := range wire.ControlCommandSet {
		out[k] = v
	}
	for k, v := range wire.TransportCommandSet {
		out[k] = v
	}
	return out
}

// testNode wires up a live two-storage Node: one registry serving both
// storages over a single merged control+transport provider, a file-backed
// meta-data workspace rooted under t.TempDir(), a shared-buffer registry
// and a small communication buffer.
func testNode(t *testing.T, storageCapacity domain.Size) (*Node, []Candidate) {
	t.Helper()

	reg := registry.New()
	idA := reg.CreateStorage(storage.NewHeap(domain.Limit(storageCapacity)))
	idB := reg.CreateStorage(storage.NewHeap(domain.Limit(storageCapacity)))

	p, err := transport.NewProvider(reg, transport.Endpoint{Network: "tcp", Address: "127.0.0.1:0"}, mergedCommands(), transport.Sequential, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	go p.Serve()
	t.Cleanup(func() { p.Close() })
	endpoint := transport.Endpoint{Network: "tcp", Address: p.Addr().String()}

	clients := transport.NewClientCache()

	backend, err := metadata.NewFilesBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesBackend: %v", err)
	}
	ws := metadata.NewWorkspace("test-workspace", backend)

	buffers := NewBufferRegistry()
	comm, err := NewCommBuffer(2, 64)
	if err != nil {
		t.Fatalf("NewCommBuffer: %v", err)
	}

	node := NewNode(ws, clients, buffers, comm,
		DirectConfig{MaximumNumberOfParallelStreams: 4, MaximumTransferSize: 0},
		IndirectConfig{NumberOfBuffers: 2, MaximumTransferSize: 0, MaximumNumberOfParallelStreams: 2, AcquireBufferTimeoutMilliseconds: 1000},
	)
	t.Cleanup(func() { node.Close() })

	candidates := []Candidate{
		{Storage: idA, Endpoint: endpoint, Capacity: storageCapacity},
		{Storage: idB, Endpoint: endpoint, Capacity: storageCapacity},
	}
	return node, candidates
}

func TestCreateCollectionUsesBothStoragesAndRoundTrips(t *testing.T) {
	node, candidates := testNode(t, 2048)
	ctx := context.Background()

	id := NewID()
	c, err := CreateCollection(ctx, node, id, metadata.CollectionInformation{SizeMax: domain.Limit(2000)}, candidates)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if c.placement.Size() != 2000 {
		t.Fatalf("expected placement sized to size_max, got %d", c.placement.Size())
	}
	if len(c.placement.Entries()) != 2 {
		t.Fatalf("expected both storages to be used for a 2000-byte collection over 2048-byte storages, got %d entries", len(c.placement.Entries()))
	}

	// indirect path: an ordinary heap-allocated slice is not a registered
	// shared buffer.
	payload := make([]byte, 500)
	for i := range payload {
		payload[i] = byte(i)
	}
	if n, err := c.Write(ctx, payload, 100, candidates); err != nil || domain.Size(n) != 500 {
		t.Fatalf("Write (indirect): n=%d err=%v", n, err)
	}
	got := make([]byte, 500)
	if n, err := c.Read(ctx, got, 100); err != nil || domain.Size(n) != 500 {
		t.Fatalf("Read (indirect): n=%d err=%v", n, err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("indirect round trip mismatch at byte %d: got %d want %d", i, got[i], payload[i])
		}
	}

	// direct path: a buffer allocated through the shared-buffer registry.
	direct, err := node.Buffers.Allocate(500)
	if err != nil {
		t.Fatalf("Buffers.Allocate: %v", err)
	}
	for i := range direct {
		direct[i] = byte(255 - i)
	}
	if n, err := c.Write(ctx, direct, 100, candidates); err != nil || domain.Size(n) != 500 {
		t.Fatalf("Write (direct): n=%d err=%v", n, err)
	}
	readBack, err := node.Buffers.Allocate(500)
	if err != nil {
		t.Fatalf("Buffers.Allocate: %v", err)
	}
	if n, err := c.Read(ctx, readBack, 100); err != nil || domain.Size(n) != 500 {
		t.Fatalf("Read (direct): n=%d err=%v", n, err)
	}
	for i := range direct {
		if readBack[i] != direct[i] {
			t.Fatalf("direct round trip mismatch at byte %d: got %d want %d", i, readBack[i], direct[i])
		}
	}
}

func TestCollectionReadPastEndIsRangeOutOfBounds(t *testing.T) {
	node, candidates := testNode(t, 2048)
	ctx := context.Background()

	c, err := CreateCollection(ctx, node, NewID(), metadata.CollectionInformation{SizeMax: domain.Limit(100)}, candidates)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	buf := make([]byte, 50)
	if _, err := c.Read(ctx, buf, 80); err == nil {
		t.Fatalf("expected an error reading past the collection's end")
	} else if _, ok := err.(*domain.RangeOutOfBoundsError); !ok {
		t.Fatalf("expected *domain.RangeOutOfBoundsError, got %#v", err)
	}
}

func TestCollectionNegativeOffsetIsRejected(t *testing.T) {
	node, candidates := testNode(t, 2048)
	ctx := context.Background()

	c, err := CreateCollection(ctx, node, NewID(), metadata.CollectionInformation{SizeMax: domain.Limit(100)}, candidates)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	buf := make([]byte, 10)
	if _, err := c.Read(ctx, buf, -1); err == nil {
		t.Fatalf("expected an error reading at a negative offset")
	} else if _, ok := err.(*domain.NegativeOffsetError); !ok {
		t.Fatalf("expected *domain.NegativeOffsetError, got %#v", err)
	}
	if _, err := c.Write(ctx, buf, -1, candidates); err == nil {
		t.Fatalf("expected an error writing at a negative offset")
	} else if _, ok := err.(*domain.NegativeOffsetError); !ok {
		t.Fatalf("expected *domain.NegativeOffsetError, got %#v", err)
	}
}

func TestCollectionWritePastMaxSizeIsRejected(t *testing.T) {
	node, candidates := testNode(t, 2048)
	ctx := context.Background()

	c, err := CreateCollection(ctx, node, NewID(), metadata.CollectionInformation{SizeMax: domain.Limit(100)}, candidates)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	buf := make([]byte, 50)
	if _, err := c.Write(ctx, buf, 80, candidates); err == nil {
		t.Fatalf("expected an error writing past a bounded collection's max size")
	} else if _, ok := err.(*domain.WriteAfterMaxSizeError); !ok {
		t.Fatalf("expected *domain.WriteAfterMaxSizeError, got %#v", err)
	}
}

func TestCollectionUnknownSizeGrowsOnWrite(t *testing.T) {
	node, candidates := testNode(t, 4096)
	ctx := context.Background()

	id := NewID()
	c, err := CreateCollection(ctx, node, id, metadata.CollectionInformation{SizeMax: domain.Unlimited()}, candidates)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if c.placement.Size() != 0 {
		t.Fatalf("expected a brand new Unknown-size_max collection to start with an empty placement, got %d", c.placement.Size())
	}

	payload := make([]byte, 200)
	if _, err := c.Write(ctx, payload, 1000, candidates); err != nil {
		t.Fatalf("Write past current end with Unknown size_max: %v", err)
	}
	if c.placement.Size() != 1200 {
		t.Fatalf("expected the placement to grow to cover the write, got %d", c.placement.Size())
	}
	size, err := node.Workspace.Size(ctx, id)
	if err != nil {
		t.Fatalf("Workspace.Size: %v", err)
	}
	if size != 1200 {
		t.Fatalf("expected meta-data size to be updated to 1200, got %d", size)
	}

	// A second growth re-runs the placement policy over the same
	// candidate list, so its block necessarily reuses storage ids the
	// first block already used — that must not be rejected as a
	// duplicate, since the duplicate rule is scoped per block, not
	// across the whole placement's history.
	payload2 := make([]byte, 100)
	if _, err := c.Write(ctx, payload2, 2000, candidates); err != nil {
		t.Fatalf("second Write past current end with Unknown size_max: %v", err)
	}
	if c.placement.Size() != 2100 {
		t.Fatalf("expected the placement to grow again to cover the second write, got %d", c.placement.Size())
	}
}

func TestIndirectTransferNeverExceedsSlotSize(t *testing.T) {
	// comm buffer slots are 64 bytes; maximum_transfer_size 0 means "no
	// split" at the config layer, but indirectTransfer must still split
	// at the slot size rather than copying past it.
	node, candidates := testNode(t, 4096)
	ctx := context.Background()

	c, err := CreateCollection(ctx, node, NewID(), metadata.CollectionInformation{SizeMax: domain.Limit(4096)}, candidates)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	payload := make([]byte, 200)
	for i := range payload {
		payload[i] = byte(i)
	}
	if _, err := c.Write(ctx, payload, 0, candidates); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := make([]byte, 200)
	if _, err := c.Read(ctx, got, 0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("round trip mismatch at byte %d: got %d want %d", i, got[i], payload[i])
		}
	}
}

func TestCollectionDeleteRemovesMetadata(t *testing.T) {
	node, candidates := testNode(t, 2048)
	ctx := context.Background()

	id := NewID()
	c, err := CreateCollection(ctx, node, id, metadata.CollectionInformation{SizeMax: domain.Limit(100)}, candidates)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := c.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, err := node.Workspace.Exists(ctx, id)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatalf("expected the collection to no longer exist after Delete")
	}
}

func TestOpenCollectionReconstructsPlacement(t *testing.T) {
	node, candidates := testNode(t, 2048)
	ctx := context.Background()

	id := NewID()
	if _, err := CreateCollection(ctx, node, id, metadata.CollectionInformation{SizeMax: domain.Limit(1000)}, candidates); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	reopened, err := OpenCollection(ctx, node, id, candidates)
	if err != nil {
		t.Fatalf("OpenCollection: %v", err)
	}
	if reopened.placement.Size() != 1000 {
		t.Fatalf("expected the reconstructed placement to match size_max, got %d", reopened.placement.Size())
	}
}
