package registry

import (
	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
)

// ChunkDescription dispatches to the storage identified by id and asks its
// implementation to describe a chunk over segment/range with the given
// access. It is the registry-level convenience the control RPC handlers
// use so they never have to type-switch on implementation kind themselves.
func (r *Registry) ChunkDescription(id domain.StorageId, access domain.ChunkAccess, segment domain.SegmentId, rng domain.Range) (storage.ChunkDescription, error) {
	tok, err := r.AcquireRead(id)
	if err != nil {
		return storage.ChunkDescription{}, err
	}
	impl, err := tok.Implementation(r)
	if err != nil {
		return storage.ChunkDescription{}, err
	}
	return impl.ChunkDescription(access, segment, rng)
}

// OpenChunk dispatches to the storage that issued desc (identified by id)
// and rematerialises the view it describes.
func (r *Registry) OpenChunk(id domain.StorageId, desc storage.ChunkDescription) (storage.Chunk, error) {
	tok, err := r.AcquireRead(id)
	if err != nil {
		return nil, err
	}
	impl, err := tok.Implementation(r)
	if err != nil {
		return nil, err
	}
	return impl.OpenChunk(desc)
}

// SegmentCreate dispatches to the storage identified by id.
func (r *Registry) SegmentCreate(id domain.StorageId, size domain.Size) (domain.SegmentId, error) {
	tok, err := r.AcquireWrite(id)
	if err != nil {
		return 0, err
	}
	impl, err := tok.Implementation(r)
	if err != nil {
		return 0, err
	}
	return impl.SegmentCreate(size)
}

// SegmentRemove dispatches to the storage identified by id. Removal of an
// unknown segment on a known storage is a no-op, per §3.
func (r *Registry) SegmentRemove(id domain.StorageId, segment domain.SegmentId) (domain.Size, error) {
	tok, err := r.AcquireWrite(id)
	if err != nil {
		return 0, err
	}
	impl, err := tok.Implementation(r)
	if err != nil {
		return 0, err
	}
	return impl.SegmentRemove(segment)
}

// SizeMax/SizeUsed dispatch read-only queries.
func (r *Registry) SizeMax(id domain.StorageId) (domain.MaxSize, error) {
	tok, err := r.AcquireRead(id)
	if err != nil {
		return domain.MaxSize{}, err
	}
	impl, err := tok.Implementation(r)
	if err != nil {
		return domain.MaxSize{}, err
	}
	return impl.SizeMax(), nil
}

func (r *Registry) SizeUsed(id domain.StorageId) (domain.Size, error) {
	tok, err := r.AcquireRead(id)
	if err != nil {
		return 0, err
	}
	impl, err := tok.Implementation(r)
	if err != nil {
		return 0, err
	}
	return impl.SizeUsed(), nil
}
