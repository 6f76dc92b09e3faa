package collection

import (
	"errors"
	"sort"
	"sync"
	"unsafe"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
)

// ErrDoubleFree is returned by BufferRegistry.Free when span was never
// allocated by this registry, or was already freed — §4.5.4's literal
// wording, "Double free or corruption."
var ErrDoubleFree = errors.New("Double free or corruption.")

// Classification is the outcome of classifying a caller-supplied buffer
// against the shared-buffer registry (§4.5.2 step 3).
type Classification int

const (
	// Indirect: span overlaps no registered buffer at all.
	Indirect Classification = iota
	// Direct: span lies entirely inside one registered buffer.
	Direct
	// PartialOverlap: span overlaps a registered buffer but isn't fully
	// contained in it — the engine refuses the request (Unsupported).
	PartialOverlap
)

type bufferSpan struct {
	addr    uintptr
	size    uintptr
	segment domain.SegmentId
	chunk   storage.Chunk
	data    []byte
}

// BufferRegistry is the process-local registry of MCS-owned shared
// buffers (§4.5.4): allocate/free on top of a dedicated Heap storage, a
// sorted-by-address index for containment lookups. Reads (Classify) take
// a shared lock; writes (Allocate/Free) take an exclusive one, matching
// the spec's explicit reader/writer split.
type BufferRegistry struct {
	mu    sync.RWMutex
	heap  *storage.Heap
	spans []bufferSpan // sorted ascending by addr
}

// NewBufferRegistry returns an empty registry backed by its own unbounded
// Heap storage.
func NewBufferRegistry() *BufferRegistry {
	return &BufferRegistry{heap: storage.NewHeap(domain.Unlimited())}
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// Allocate returns a fresh MCS-owned span of size bytes, registered for
// later Classify/Free calls.
func (r *BufferRegistry) Allocate(size domain.Size) ([]byte, error) {
	seg, err := r.heap.SegmentCreate(size)
	if err != nil {
		return nil, err
	}
	desc, err := r.heap.ChunkDescription(domain.Mutable, seg, domain.Range{Begin: 0, Length: size})
	if err != nil {
		r.heap.SegmentRemove(seg)
		return nil, err
	}
	chunk, err := r.heap.OpenChunk(desc)
	if err != nil {
		r.heap.SegmentRemove(seg)
		return nil, err
	}
	data := chunk.Bytes()
	span := bufferSpan{addr: addrOf(data), size: uintptr(len(data)), segment: seg, chunk: chunk, data: data}

	r.mu.Lock()
	defer r.mu.Unlock()
	i := sort.Search(len(r.spans), func(i int) bool { return r.spans[i].addr >= span.addr })
	r.spans = append(r.spans, bufferSpan{})
	copy(r.spans[i+1:], r.spans[i:])
	r.spans[i] = span
	return data, nil
}

// Free releases a span previously returned by Allocate. Freeing anything
// else, or freeing the same span twice, is ErrDoubleFree.
func (r *BufferRegistry) Free(span []byte) error {
	addr := addrOf(span)

	r.mu.Lock()
	i := sort.Search(len(r.spans), func(i int) bool { return r.spans[i].addr >= addr })
	if i >= len(r.spans) || r.spans[i].addr != addr {
		r.mu.Unlock()
		return ErrDoubleFree
	}
	found := r.spans[i]
	r.spans = append(r.spans[:i], r.spans[i+1:]...)
	r.mu.Unlock()

	found.chunk.Close()
	_, err := r.heap.SegmentRemove(found.segment)
	return err
}

// Classify implements §4.5.2 step 3: find the smallest registered buffer
// whose end lies past span's start (a lower_bound lookup, exactly as the
// spec describes it), then check full containment.
func (r *BufferRegistry) Classify(span []byte) Classification {
	if len(span) == 0 {
		return Indirect
	}
	begin := addrOf(span)
	end := begin + uintptr(len(span))

	r.mu.RLock()
	defer r.mu.RUnlock()

	i := sort.Search(len(r.spans), func(i int) bool { return r.spans[i].addr+r.spans[i].size > begin })
	if i >= len(r.spans) {
		return Indirect
	}
	s := r.spans[i]
	if s.addr >= end {
		return Indirect
	}
	if s.addr <= begin && end <= s.addr+s.size {
		return Direct
	}
	return PartialOverlap
}

// Close releases every still-registered span and the backing heap.
func (r *BufferRegistry) Close() error {
	r.mu.Lock()
	spans := r.spans
	r.spans = nil
	r.mu.Unlock()

	var firstErr error
	for _, s := range spans {
		s.chunk.Close()
		if _, err := r.heap.SegmentRemove(s.segment); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
