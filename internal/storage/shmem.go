package storage

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// SHMEM backs every segment with a POSIX shared-memory object named
// "/<prefix>.<segment_id>" (§4.1). On Linux these live under /dev/shm, so a
// shm_open(O_CREAT|O_EXCL) is an os.OpenFile against that path; ftruncate
// and mmap are unix.Ftruncate/unix.Mmap. Length-zero segments are handled
// specially: the stored pointer is nil and both mmap and munmap are
// skipped, matching the original's nullptr special case.
type SHMEM struct {
	acc    *accounting
	prefix string
	mlock  bool

	mu      sync.Mutex
	regions map[domain.SegmentId]*shmRegion
}

type shmRegion struct {
	name   string
	fd     *os.File
	data   []byte // nil for zero-length segments
	owner  bool   // this process created the segment -> shm_unlink on destroy
	locked bool
}

// NewSHMEM constructs a SHMEM storage. prefix names the POSIX shm objects
// ("/<prefix>.<segment_id>"); mlock, if set, locks every created region.
func NewSHMEM(max domain.MaxSize, prefix string, mlock bool) *SHMEM {
	return &SHMEM{
		acc:     newAccounting(max),
		prefix:  prefix,
		mlock:   mlock,
		regions: make(map[domain.SegmentId]*shmRegion),
	}
}

func shmPath(name string) string { return "/dev/shm" + name }

func (s *SHMEM) shmName(id domain.SegmentId) string {
	return fmt.Sprintf("/%s.%d", s.prefix, id)
}

func (s *SHMEM) Kind() domain.StorageImplementationId { return domain.ImplSHMEM }
func (s *SHMEM) SizeMax() domain.MaxSize              { return s.acc.max }
func (s *SHMEM) SizeUsed() domain.Size                { return s.acc.used_() }

func (s *SHMEM) SegmentCreate(size domain.Size) (domain.SegmentId, error) {
	id, err := s.acc.reserve(size)
	if err != nil {
		return 0, err
	}
	name := s.shmName(id)
	f, err := os.OpenFile(shmPath(name), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		s.acc.release(id)
		return 0, fmt.Errorf("shm_open %s: %w", name, err)
	}
	region := &shmRegion{name: name, fd: f, owner: true}
	if size > 0 {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			os.Remove(shmPath(name))
			s.acc.release(id)
			return 0, fmt.Errorf("ftruncate %s: %w", name, err)
		}
		data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			os.Remove(shmPath(name))
			s.acc.release(id)
			return 0, fmt.Errorf("mmap %s: %w", name, err)
		}
		region.data = data
		if s.mlock {
			if err := unix.Mlock(data); err == nil {
				region.locked = true
			}
		}
	}
	s.mu.Lock()
	s.regions[id] = region
	s.mu.Unlock()
	return id, nil
}

func (s *SHMEM) SegmentRemove(id domain.SegmentId) (domain.Size, error) {
	s.mu.Lock()
	region, ok := s.regions[id]
	if ok {
		delete(s.regions, id)
	}
	s.mu.Unlock()
	freed := s.acc.release(id)
	if !ok {
		return 0, nil // idempotent: unknown segment is a no-op
	}
	s.destroyRegion(region)
	return freed, nil
}

// destroyRegion is the noexcept scoped-release path: munmap, munlock, close
// and, if this process created the name, shm_unlink. A failure here is
// logged and swallowed rather than propagated, per §4.1's release
// discipline; callers that need a hard failure should check Close().
func (s *SHMEM) destroyRegion(region *shmRegion) {
	defer func() {
		if r := recover(); r != nil {
			panic(fmt.Sprintf("SHMEM: release of %s double-faulted: %v", region.name, r))
		}
	}()
	if region.data != nil {
		if region.locked {
			_ = unix.Munlock(region.data)
		}
		_ = unix.Munmap(region.data)
	}
	if region.fd != nil {
		_ = region.fd.Close()
	}
	if region.owner {
		_ = os.Remove(shmPath(region.name))
	}
}

func (s *SHMEM) ChunkDescription(access domain.ChunkAccess, id domain.SegmentId, r domain.Range) (ChunkDescription, error) {
	size, ok := s.acc.sizeOf(id)
	if !ok {
		return ChunkDescription{}, &domain.UnknownSegmentIDError{Segment: id}
	}
	if err := checkRange(size, r); err != nil {
		return ChunkDescription{}, err
	}
	return ChunkDescription{Impl: domain.ImplSHMEM, Segment: id, Range: r, Access: access, Parameter: []byte(s.shmName(id))}, nil
}

func (s *SHMEM) OpenChunk(desc ChunkDescription) (Chunk, error) {
	s.mu.Lock()
	region, ok := s.regions[desc.Segment]
	s.mu.Unlock()
	if !ok {
		return nil, &domain.UnknownSegmentIDError{Segment: desc.Segment}
	}
	if region.data == nil {
		return &shmChunk{span: nil, access: desc.Access}, nil
	}
	span := region.data[desc.Range.Begin:desc.Range.End()]
	return &shmChunk{span: span, access: desc.Access}, nil
}

func (s *SHMEM) FileRead(id domain.SegmentId, r domain.Range) ([]byte, error) {
	c, err := s.OpenChunk(ChunkDescription{Segment: id, Range: r, Access: domain.Const})
	if err != nil {
		return nil, err
	}
	defer c.Close()
	out := make([]byte, len(c.Bytes()))
	copy(out, c.Bytes())
	return out, nil
}

func (s *SHMEM) FileWrite(id domain.SegmentId, offset domain.Offset, data []byte) (domain.Size, error) {
	size, ok := s.acc.sizeOf(id)
	if !ok {
		return 0, &domain.UnknownSegmentIDError{Segment: id}
	}
	r := domain.Range{Begin: offset, Length: domain.Size(len(data))}
	if err := checkRange(size, r); err != nil {
		return 0, err
	}
	c, err := s.OpenChunk(ChunkDescription{Segment: id, Range: r, Access: domain.Mutable})
	if err != nil {
		return 0, err
	}
	defer c.Close()
	n := copy(c.Bytes(), data)
	return domain.Size(n), nil
}

func (s *SHMEM) Close() error {
	s.mu.Lock()
	regions := s.regions
	s.regions = make(map[domain.SegmentId]*shmRegion)
	s.mu.Unlock()
	for _, region := range regions {
		s.destroyRegion(region)
	}
	return nil
}

type shmChunk struct {
	span   []byte
	access domain.ChunkAccess
}

func (c *shmChunk) Bytes() []byte             { return c.span }
func (c *shmChunk) Access() domain.ChunkAccess { return c.access }
func (c *shmChunk) Close() error              { return nil }
