package storage

import (
	"bytes"
	"testing"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

func TestHeapRoundTrip(t *testing.T) {
	h := NewHeap(domain.Limit(1 << 20))
	id, err := h.SegmentCreate(256)
	if err != nil {
		t.Fatalf("SegmentCreate: %v", err)
	}
	payload := bytes.Repeat([]byte{0xab}, 64)
	n, err := h.FileWrite(id, 16, payload)
	if err != nil {
		t.Fatalf("FileWrite: %v", err)
	}
	if domain.Size(n) != domain.Size(len(payload)) {
		t.Fatalf("short write: %d", n)
	}
	got, err := h.FileRead(id, domain.Range{Begin: 16, Length: 64})
	if err != nil {
		t.Fatalf("FileRead: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: %x != %x", got, payload)
	}
}

func TestHeapBadAlloc(t *testing.T) {
	h := NewHeap(domain.Limit(128))
	if _, err := h.SegmentCreate(256); err == nil {
		t.Fatalf("expected BadAlloc")
	} else if _, ok := err.(*domain.BadAllocError); !ok {
		t.Fatalf("expected *domain.BadAllocError, got %T: %v", err, err)
	}
}

func TestHeapSegmentRemoveIdempotent(t *testing.T) {
	h := NewHeap(domain.Unlimited())
	id, _ := h.SegmentCreate(16)
	if _, err := h.SegmentRemove(id); err != nil {
		t.Fatalf("SegmentRemove: %v", err)
	}
	if freed, err := h.SegmentRemove(id); err != nil || freed != 0 {
		t.Fatalf("second removal should be a no-op, got freed=%d err=%v", freed, err)
	}
}

func TestHeapZeroLengthChunk(t *testing.T) {
	h := NewHeap(domain.Unlimited())
	id, _ := h.SegmentCreate(16)
	n, err := h.FileWrite(id, 0, nil)
	if err != nil || n != 0 {
		t.Fatalf("zero-length write should succeed with 0 bytes, got n=%d err=%v", n, err)
	}
}
