package transport

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/registry"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/wire"
)

func startTestProvider(t *testing.T, reg *registry.Registry, commands map[wire.CommandKind]bool, policy AccessPolicy) (*Provider, Endpoint) {
	t.Helper()
	p, err := NewProvider(reg, Endpoint{Network: "tcp", Address: "127.0.0.1:0"}, commands, policy, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	go p.Serve()
	t.Cleanup(func() { p.Close() })
	return p, Endpoint{Network: "tcp", Address: p.Addr().String()}
}

func dialTest(t *testing.T, ep Endpoint) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, ep)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestControlStorageLifecycle(t *testing.T) {
	reg := registry.New()
	_, ep := startTestProvider(t, reg, wire.ControlCommandSet, Sequential)
	c := dialTest(t, ep)

	id, err := c.StorageCreate(domain.ImplHeap, domain.Limit(1<<20), nil)
	if err != nil {
		t.Fatalf("StorageCreate: %v", err)
	}
	max, used, err := c.StorageSize(id)
	if err != nil {
		t.Fatalf("StorageSize: %v", err)
	}
	if limit, bounded := max.Value(); !bounded || limit != 1<<20 {
		t.Fatalf("unexpected max: %+v", max)
	}
	if used != 0 {
		t.Fatalf("expected 0 used, got %d", used)
	}

	seg, err := c.SegmentCreate(id, 128)
	if err != nil {
		t.Fatalf("SegmentCreate: %v", err)
	}
	payload := bytes.Repeat([]byte{0x42}, 32)
	if _, err := c.FileWrite(id, seg, 0, payload); err != nil {
		t.Fatalf("FileWrite: %v", err)
	}
	got, err := c.FileRead(id, seg, domain.Range{Begin: 0, Length: 32})
	if err != nil {
		t.Fatalf("FileRead: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: %x != %x", got, payload)
	}

	if _, err := c.SegmentRemove(id, seg); err != nil {
		t.Fatalf("SegmentRemove: %v", err)
	}
	if err := c.StorageRemove(id); err != nil {
		t.Fatalf("StorageRemove: %v", err)
	}
}

func TestControlUnknownStorageIsRemoteError(t *testing.T) {
	reg := registry.New()
	_, ep := startTestProvider(t, reg, wire.ControlCommandSet, Sequential)
	c := dialTest(t, ep)

	if _, err := c.StorageSizeMax(999); err == nil {
		t.Fatalf("expected an error for unknown storage id")
	} else if rerr, ok := err.(*remoteError); !ok || rerr.Kind != "unknown_id" {
		t.Fatalf("expected remoteError{unknown_id}, got %#v", err)
	}
}

func TestMemoryGetPutRoundTrip(t *testing.T) {
	reg := registry.New()
	_, ep := startTestProvider(t, reg, wire.TransportCommandSet, Sequential)
	c := dialTest(t, ep)

	id := reg.CreateStorage(storage.NewHeap(domain.Unlimited()))
	seg, err := reg.SegmentCreate(id, 64)
	if err != nil {
		t.Fatalf("SegmentCreate: %v", err)
	}

	dest := domain.TransportAddress{Storage: id, Segment: seg, Offset: 0}
	src := domain.TransportAddress{Storage: id, Segment: seg, Offset: 0}
	payload := bytes.Repeat([]byte{0x7}, 64)
	if n, err := c.MemoryPut(dest, src, payload); err != nil || domain.Size(n) != 64 {
		t.Fatalf("MemoryPut: n=%d err=%v", n, err)
	}

	dst := make([]byte, 64)
	if n, err := c.MemoryGet(src, dest, 64, dst); err != nil || domain.Size(n) != 64 {
		t.Fatalf("MemoryGet: n=%d err=%v", n, err)
	}
	if !bytes.Equal(dst, payload) {
		t.Fatalf("memory round trip mismatch: %x != %x", dst, payload)
	}
}
