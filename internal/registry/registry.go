// Package registry implements the per-process Storages registry (§4.2): a
// heterogeneous map from StorageId to one of the compiled-in storage
// implementation variants, issuing fresh ids and enforcing a read/write
// access discipline.
//
// The arena is the teacher's own NonLockingReadMap
// (third_party/NonLockingReadMap, vendored unmodified from
// launix-de/memcp) generalized from "read-mostly column metadata" to
// "read-mostly storage instances": reads never block, writes are
// optimistic compare-and-swap retries. §9's design note that "the access
// token does not belong to this check becomes pointer identity on the
// arena" is implemented literally below.
package registry

import (
	"runtime"
	"sync/atomic"

	nlrm "github.com/launix-de/NonLockingReadMap"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
)

// entry satisfies nlrm.KeyGetter[domain.StorageId] so a Registry can store
// it directly in a NonLockingReadMap.
type entry struct {
	id   domain.StorageId
	impl storage.Implementation
}

func (e *entry) GetKey() domain.StorageId { return e.id }

// ComputeSize is a rough accounting hook; the map uses it only for its own
// instrumentation (NonLockingReadMap.ComputeSize), not for MaxSize
// enforcement, which lives in each storage.Implementation.
func (e *entry) ComputeSize() uint { return 64 }

// Registry is a process-local store of live Storage instances.
type Registry struct {
	arena         nlrm.NonLockingReadMap[entry, domain.StorageId]
	nextID        atomic.Uint64
	writersWaiting atomic.Int32
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{arena: nlrm.New[entry, domain.StorageId]()}
}

// CreateStorage issues a fresh StorageId for impl and publishes it. Writers
// increment writersWaiting for the duration of the publish so concurrent
// AcquireRead callers yield to them first (§5's writer-priority
// convention).
func (r *Registry) CreateStorage(impl storage.Implementation) domain.StorageId {
	id := domain.StorageId(r.nextID.Add(1))
	r.writersWaiting.Add(1)
	defer r.writersWaiting.Add(-1)
	r.arena.Set(&entry{id: id, impl: impl})
	return id
}

// RemoveStorage closes and unpublishes id. Removal of an unknown id is
// reported as domain.UnknownIDError rather than being idempotent, since
// callers that ask to remove a Storage (as opposed to a Segment) are
// expected to know it exists.
func (r *Registry) RemoveStorage(id domain.StorageId) error {
	r.writersWaiting.Add(1)
	defer r.writersWaiting.Add(-1)
	e := r.arena.Remove(id)
	if e == nil {
		return &domain.UnknownIDError{ID: id}
	}
	return (*e).impl.Close()
}

// waitForWriters spins briefly while a writer publish/remove is in flight,
// so writers are never starved by a steady stream of readers (§5).
func (r *Registry) waitForWriters() {
	for r.writersWaiting.Load() > 0 {
		runtime.Gosched()
	}
}

// ReadToken is a shared read-access borrow of one Storage instance. Readers
// may run concurrently with other readers.
type ReadToken struct {
	registry *Registry
	id       domain.StorageId
	impl     storage.Implementation
}

// WriteToken is an exclusive write-access borrow of one Storage instance.
type WriteToken struct {
	registry *Registry
	id       domain.StorageId
	impl     storage.Implementation
}

// AcquireRead looks up id and returns a ReadToken over it.
func (r *Registry) AcquireRead(id domain.StorageId) (*ReadToken, error) {
	r.waitForWriters()
	e := r.arena.Get(id)
	if e == nil {
		return nil, &domain.UnknownIDError{ID: id}
	}
	return &ReadToken{registry: r, id: id, impl: (*e).impl}, nil
}

// AcquireWrite looks up id and returns a WriteToken over it. The lookup
// itself is the same lock-free read as AcquireRead; exclusivity is
// enforced one level down, inside each storage.Implementation's own
// accounting mutex around segment_create/segment_remove.
func (r *Registry) AcquireWrite(id domain.StorageId) (*WriteToken, error) {
	e := r.arena.Get(id)
	if e == nil {
		return nil, &domain.UnknownIDError{ID: id}
	}
	return &WriteToken{registry: r, id: id, impl: (*e).impl}, nil
}

// Implementation returns the storage.Implementation borrowed by t, failing
// with AccessTokenDoesNotBelongToThis if t was issued by a different
// Registry.
func (t *ReadToken) Implementation(owner *Registry) (storage.Implementation, error) {
	if t.registry != owner {
		return nil, &domain.AccessTokenDoesNotBelongToThisError{}
	}
	return t.impl, nil
}

func (t *WriteToken) Implementation(owner *Registry) (storage.Implementation, error) {
	if t.registry != owner {
		return nil, &domain.AccessTokenDoesNotBelongToThisError{}
	}
	return t.impl, nil
}

// StorageID returns the id a token was issued for.
func (t *ReadToken) StorageID() domain.StorageId  { return t.id }
func (t *WriteToken) StorageID() domain.StorageId { return t.id }

// Kind returns the implementation variant for id, failing with
// UnknownIDError if absent.
func (r *Registry) Kind(id domain.StorageId) (domain.StorageImplementationId, error) {
	e := r.arena.Get(id)
	if e == nil {
		return 0, &domain.UnknownIDError{ID: id}
	}
	return (*e).impl.Kind(), nil
}

// List returns every currently registered StorageId.
func (r *Registry) List() []domain.StorageId {
	all := r.arena.GetAll()
	ids := make([]domain.StorageId, 0, len(all))
	for _, e := range all {
		ids = append(ids, (*e).id)
	}
	return ids
}

// Close removes and closes every storage still registered. Used on node
// shutdown.
func (r *Registry) Close() error {
	var firstErr error
	for _, id := range r.List() {
		if err := r.RemoveStorage(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
