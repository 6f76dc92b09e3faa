package registry

import (
	"testing"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
)

func TestRegistryCreateAndLookup(t *testing.T) {
	r := New()
	id := r.CreateStorage(storage.NewHeap(domain.Unlimited()))
	kind, err := r.Kind(id)
	if err != nil {
		t.Fatalf("Kind: %v", err)
	}
	if kind != domain.ImplHeap {
		t.Fatalf("kind = %v, want Heap", kind)
	}
}

func TestRegistryUnknownID(t *testing.T) {
	r := New()
	if _, err := r.Kind(999); err == nil {
		t.Fatalf("expected UnknownID")
	} else if _, ok := err.(*domain.UnknownIDError); !ok {
		t.Fatalf("expected *domain.UnknownIDError, got %T", err)
	}
}

func TestAccessTokenDoesNotBelongToOtherRegistry(t *testing.T) {
	r1 := New()
	r2 := New()
	id := r1.CreateStorage(storage.NewHeap(domain.Unlimited()))
	tok, err := r1.AcquireRead(id)
	if err != nil {
		t.Fatalf("AcquireRead: %v", err)
	}
	if _, err := tok.Implementation(r2); err == nil {
		t.Fatalf("expected AccessTokenDoesNotBelongToThis")
	} else if _, ok := err.(*domain.AccessTokenDoesNotBelongToThisError); !ok {
		t.Fatalf("expected *domain.AccessTokenDoesNotBelongToThisError, got %T", err)
	}
}

func TestRegistrySegmentRoundTrip(t *testing.T) {
	r := New()
	id := r.CreateStorage(storage.NewHeap(domain.Unlimited()))
	seg, err := r.SegmentCreate(id, 32)
	if err != nil {
		t.Fatalf("SegmentCreate: %v", err)
	}
	desc, err := r.ChunkDescription(id, domain.Mutable, seg, domain.Range{Begin: 0, Length: 32})
	if err != nil {
		t.Fatalf("ChunkDescription: %v", err)
	}
	chunk, err := r.OpenChunk(id, desc)
	if err != nil {
		t.Fatalf("OpenChunk: %v", err)
	}
	defer chunk.Close()
	copy(chunk.Bytes(), []byte("hello world"))
}
