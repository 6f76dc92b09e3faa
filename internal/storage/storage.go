// Package storage implements the storage-implementation layer (§4.1):
// Heap, SHMEM, Files, S3, Ceph and ImportedC, each satisfying the same
// Implementation contract so the registry (internal/registry) and the
// transport providers (internal/transport) can dispatch to any of them
// without knowing which one they hold.
package storage

import (
	"sync"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// ChunkDescription is a serializable value sufficient to rematerialise a
// Chunk view in another address space reachable via the same storage
// implementation (same process for Heap, any process on the host for
// SHMEM/Files, any process with network access for S3/Ceph).
type ChunkDescription struct {
	Impl    domain.StorageImplementationId
	Segment domain.SegmentId
	Range   domain.Range
	Access  domain.ChunkAccess
	// Parameter carries whatever the implementation needs to reopen the
	// view: a SHMEM name, a Files path prefix, an S3 bucket/key, ... It is
	// opaque to everything above this package.
	Parameter []byte
}

// Chunk is a typed, scoped view over a Range within a Segment. Close
// releases whatever OS or network resource backs the view (unmap, munlock,
// close) on every exit path; implementations must not panic from Close
// except to signal the noexcept-terminate discipline of §4.1's "OpenFile
// scoped acquisition".
type Chunk interface {
	Bytes() []byte
	Access() domain.ChunkAccess
	Close() error
}

// Implementation is the contract every storage implementation satisfies
// (§4.1). A Storage instance in the registry wraps exactly one
// Implementation plus its bookkeeping (MaxSize, size_used, segment set).
type Implementation interface {
	Kind() domain.StorageImplementationId
	SizeMax() domain.MaxSize
	SizeUsed() domain.Size
	SegmentCreate(size domain.Size) (domain.SegmentId, error)
	SegmentRemove(id domain.SegmentId) (domain.Size, error)
	ChunkDescription(access domain.ChunkAccess, id domain.SegmentId, r domain.Range) (ChunkDescription, error)
	OpenChunk(desc ChunkDescription) (Chunk, error)
	FileRead(id domain.SegmentId, r domain.Range) ([]byte, error)
	FileWrite(id domain.SegmentId, offset domain.Offset, data []byte) (domain.Size, error)
	// Close releases every OS resource owned by every live segment. Called
	// when the storage is removed from the registry.
	Close() error
}

// accounting is the shared size/segment bookkeeping every implementation
// embeds: MaxSize enforcement and BadAlloc signalling are identical across
// implementations, only the byte storage differs.
type accounting struct {
	mu        sync.Mutex
	max       domain.MaxSize
	used      domain.Size
	nextSeg   domain.SegmentId
	sizeOfSeg map[domain.SegmentId]domain.Size
}

func newAccounting(max domain.MaxSize) *accounting {
	return &accounting{max: max, sizeOfSeg: make(map[domain.SegmentId]domain.Size)}
}

// reserve checks MaxSize and, if it fits, issues a fresh SegmentId and
// records its size. Returns a *domain.BadAllocError otherwise.
func (a *accounting) reserve(size domain.Size) (domain.SegmentId, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit, bounded := a.max.Value(); bounded && a.used+size > limit {
		return 0, &domain.BadAllocError{Requested: size, Used: a.used, Max: limit}
	}
	a.nextSeg++
	id := a.nextSeg
	a.sizeOfSeg[id] = size
	a.used += size
	return id, nil
}

// release removes the bookkeeping for id, idempotently: removing an
// unknown segment is a no-op per §3.
func (a *accounting) release(id domain.SegmentId) domain.Size {
	a.mu.Lock()
	defer a.mu.Unlock()
	size, ok := a.sizeOfSeg[id]
	if !ok {
		return 0
	}
	delete(a.sizeOfSeg, id)
	a.used -= size
	return size
}

func (a *accounting) sizeOf(id domain.SegmentId) (domain.Size, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sizeOfSeg[id]
	return s, ok
}

func (a *accounting) used_() domain.Size {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

func (a *accounting) segmentIds() []domain.SegmentId {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]domain.SegmentId, 0, len(a.sizeOfSeg))
	for id := range a.sizeOfSeg {
		ids = append(ids, id)
	}
	return ids
}

func checkRange(segSize domain.Size, r domain.Range) error {
	if r.Begin < 0 {
		return &domain.NegativeOffsetError{Offset: r.Begin}
	}
	if domain.Size(r.End()) > segSize {
		return &domain.BadAllocError{Requested: domain.Size(r.End()), Used: 0, Max: segSize}
	}
	return nil
}
