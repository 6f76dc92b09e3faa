package blockdevice

import (
	"context"
	"testing"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/registry"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/transport"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/wire"
)

func TestDeviceAddIsSequentialAndDense(t *testing.T) {
	d := NewDevice(4096)
	for i := 0; i < 3; i++ {
		if _, _, err := d.Add(domain.StorageId(i+1), 1, 32<<20, transport.Endpoint{}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	blocks := d.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("expected a single merged-looking run from sequential Add calls, got %d ranges: %v", len(blocks), blocks)
	}
	if blocks[0].Begin != 0 || blocks[0].End() != BlockId(3*32<<20/4096) {
		t.Fatalf("unexpected range %v", blocks[0])
	}
}

func TestDeviceRemoveSplitsAndDropsMappings(t *testing.T) {
	d := NewDevice(4096)
	// six 32MiB storages => 49152 total blocks, matching the acceptance scenario.
	for i := 0; i < 6; i++ {
		if _, _, err := d.Add(domain.StorageId(i+1), 1, 32<<20, transport.Endpoint{}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if got, want := d.Blocks()[0].End(), BlockId(49152); got != want {
		t.Fatalf("total blocks = %d, want %d", got, want)
	}

	if _, err := d.Remove(BlockRange{Begin: 16384, Count: 24576 - 16384}); err != nil {
		t.Fatalf("Remove whole-mapping range: %v", err)
	}
	remaining := d.Blocks()
	if len(remaining) != 2 {
		t.Fatalf("expected 2 ranges after removing the middle mapping, got %v", remaining)
	}
	if remaining[0] != (BlockRange{Begin: 0, Count: 16384}) {
		t.Fatalf("unexpected first range: %v", remaining[0])
	}
	if remaining[1].Begin != 24576 || remaining[1].End() != 49152 {
		t.Fatalf("unexpected second range: %v", remaining[1])
	}
}

func TestDeviceLocationUnknownBlock(t *testing.T) {
	d := NewDevice(4096)
	if _, _, err := d.Location(0); err == nil {
		t.Fatalf("expected BlockNotInAnyStorage on an empty device")
	} else if _, ok := err.(*domain.BlockNotInAnyStorageError); !ok {
		t.Fatalf("expected *domain.BlockNotInAnyStorageError, got %T", err)
	}
}

// TestReaderWriterRoundTrip exercises Reader/Writer end to end against a
// live control+transport provider, mirroring the acceptance scenario's
// "reading block 49494 after writing it ... returns the inserted values."
func TestReaderWriterRoundTrip(t *testing.T) {
	reg := registry.New()
	heapID := reg.CreateStorage(storage.NewHeap(domain.Unlimited()))
	seg, err := reg.SegmentCreate(heapID, 4096)
	if err != nil {
		t.Fatalf("SegmentCreate: %v", err)
	}

	p, err := transport.NewProvider(reg, transport.Endpoint{Network: "tcp", Address: "127.0.0.1:0"}, wire.TransportCommandSet, transport.Sequential, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	go p.Serve()
	t.Cleanup(func() { p.Close() })
	endpoint := transport.Endpoint{Network: "tcp", Address: p.Addr().String()}

	cache := transport.NewClientCache()
	t.Cleanup(func() { cache.Close() })

	d := NewDevice(4096)
	blocks, _, err := d.Add(heapID, seg, 4096, endpoint)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	w := NewWriter(d, cache.Get)
	r := NewReader(d, cache.Get)

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := w.Write(context.Background(), blocks.Begin, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := r.Read(context.Background(), blocks.Begin)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("mismatch at byte %d: got %d want %d", i, got[i], payload[i])
		}
	}
}
