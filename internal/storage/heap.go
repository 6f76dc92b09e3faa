package storage

import (
	"sync"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// Heap backs every segment with a process-private []byte allocation.
// Chunks are spans directly into those allocations — no copy, no syscalls,
// the cheapest of the implementations and the one the collection engine
// uses for its own communication buffer (§4.5.3).
type Heap struct {
	acc  *accounting
	mu   sync.RWMutex
	data map[domain.SegmentId][]byte
}

// NewHeap constructs a Heap storage bounded by max.
func NewHeap(max domain.MaxSize) *Heap {
	return &Heap{
		acc:  newAccounting(max),
		data: make(map[domain.SegmentId][]byte),
	}
}

func (h *Heap) Kind() domain.StorageImplementationId { return domain.ImplHeap }
func (h *Heap) SizeMax() domain.MaxSize              { return h.acc.max }
func (h *Heap) SizeUsed() domain.Size                { return h.acc.used_() }

func (h *Heap) SegmentCreate(size domain.Size) (domain.SegmentId, error) {
	id, err := h.acc.reserve(size)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	h.data[id] = make([]byte, size)
	h.mu.Unlock()
	return id, nil
}

func (h *Heap) SegmentRemove(id domain.SegmentId) (domain.Size, error) {
	freed := h.acc.release(id)
	h.mu.Lock()
	delete(h.data, id)
	h.mu.Unlock()
	return freed, nil
}

func (h *Heap) ChunkDescription(access domain.ChunkAccess, id domain.SegmentId, r domain.Range) (ChunkDescription, error) {
	size, ok := h.acc.sizeOf(id)
	if !ok {
		return ChunkDescription{}, &domain.UnknownSegmentIDError{Segment: id}
	}
	if err := checkRange(size, r); err != nil {
		return ChunkDescription{}, err
	}
	return ChunkDescription{Impl: domain.ImplHeap, Segment: id, Range: r, Access: access}, nil
}

func (h *Heap) OpenChunk(desc ChunkDescription) (Chunk, error) {
	h.mu.RLock()
	buf, ok := h.data[desc.Segment]
	h.mu.RUnlock()
	if !ok {
		return nil, &domain.UnknownSegmentIDError{Segment: desc.Segment}
	}
	span := buf[desc.Range.Begin:desc.Range.End()]
	return &heapChunk{span: span, access: desc.Access}, nil
}

func (h *Heap) FileRead(id domain.SegmentId, r domain.Range) ([]byte, error) {
	c, err := h.OpenChunk(ChunkDescription{Segment: id, Range: r, Access: domain.Const})
	if err != nil {
		return nil, err
	}
	defer c.Close()
	out := make([]byte, len(c.Bytes()))
	copy(out, c.Bytes())
	return out, nil
}

func (h *Heap) FileWrite(id domain.SegmentId, offset domain.Offset, data []byte) (domain.Size, error) {
	size, ok := h.acc.sizeOf(id)
	if !ok {
		return 0, &domain.UnknownSegmentIDError{Segment: id}
	}
	r := domain.Range{Begin: offset, Length: domain.Size(len(data))}
	if err := checkRange(size, r); err != nil {
		return 0, err
	}
	c, err := h.OpenChunk(ChunkDescription{Segment: id, Range: r, Access: domain.Mutable})
	if err != nil {
		return 0, err
	}
	defer c.Close()
	n := copy(c.Bytes(), data)
	return domain.Size(n), nil
}

// Close releases nothing; Heap segments are plain garbage-collected slices
// once dropped from the map, there is no OS resource to unwind.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = make(map[domain.SegmentId][]byte)
	return nil
}

type heapChunk struct {
	span   []byte
	access domain.ChunkAccess
}

func (c *heapChunk) Bytes() []byte            { return c.span }
func (c *heapChunk) Access() domain.ChunkAccess { return c.access }
func (c *heapChunk) Close() error             { return nil }
