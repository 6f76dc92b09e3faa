package collection

import (
	"context"
	"testing"
	"time"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

func TestCommBufferAcquireReleaseRoundTrip(t *testing.T) {
	cb, err := NewCommBuffer(2, 16)
	if err != nil {
		t.Fatalf("NewCommBuffer: %v", err)
	}
	t.Cleanup(func() { cb.Close() })

	i, slot, err := cb.Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(slot) != 16 {
		t.Fatalf("expected a 16-byte slot, got %d", len(slot))
	}
	copy(slot, []byte("hello, world!!!!"))

	cb.Release(i)

	j, slot2, err := cb.Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("re-Acquire after Release: %v", err)
	}
	if j != i {
		t.Fatalf("expected the released slot %d to be reused, got %d", i, j)
	}
	_ = slot2
}

func TestCommBufferSlotSize(t *testing.T) {
	cb, err := NewCommBuffer(3, 128)
	if err != nil {
		t.Fatalf("NewCommBuffer: %v", err)
	}
	t.Cleanup(func() { cb.Close() })

	if cb.SlotSize() != 128 {
		t.Fatalf("expected SlotSize 128, got %d", cb.SlotSize())
	}
}

func TestCommBufferAcquireExhaustion(t *testing.T) {
	cb, err := NewCommBuffer(1, 8)
	if err != nil {
		t.Fatalf("NewCommBuffer: %v", err)
	}
	t.Cleanup(func() { cb.Close() })

	i, _, err := cb.Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	_, _, err = cb.Acquire(context.Background(), 20*time.Millisecond)
	if _, ok := err.(*domain.BitmapSetTimeoutError); !ok {
		t.Fatalf("expected BitmapSetTimeoutError while the only slot is held, got %#v", err)
	}

	cb.Release(i)
	if _, _, err := cb.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}
}

func TestCommBufferAcquireContextCancelled(t *testing.T) {
	cb, err := NewCommBuffer(1, 8)
	if err != nil {
		t.Fatalf("NewCommBuffer: %v", err)
	}
	t.Cleanup(func() { cb.Close() })

	if _, _, err := cb.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := cb.Acquire(ctx, time.Second); err != ctx.Err() {
		t.Fatalf("expected the cancelled context's error, got %v", err)
	}
}
