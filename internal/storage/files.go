package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// Persistency controls whether a Files segment's backing file survives
// segment_remove.
type Persistency int

const (
	Remove Persistency = iota // default: file is deleted with the segment
	Keep                      // file survives segment_remove
)

// nfsSuperMagic is Linux's NFS_SUPER_MAGIC; Files storage refuses to open a
// prefix mounted via NFS because it cannot safely mmap it (§4.1).
const nfsSuperMagic = 0x6969

// Files backs every segment with a file under a directory prefix. On
// construction the prefix must exist, must not be NFS-mounted, and every
// file in it must parse as a valid segment id — existing files are
// recovered as segments, mirroring the teacher's FileStorage.ReadSchema
// backup-recovery idiom (persistence-files.go) generalized from one
// schema.json to N numerically-named segment files.
type Files struct {
	acc    *accounting
	prefix string

	mu          sync.Mutex
	persistency map[domain.SegmentId]Persistency
	mapped      map[domain.SegmentId][]byte // entries are only deleted (SegmentRemove); OpenChunk maps per chunk and does not record here

	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewFiles constructs a Files storage rooted at prefix, recovering any
// existing numerically-named segment files with Keep persistency. Newly
// created segments get Remove persistency.
func NewFiles(max domain.MaxSize, prefix string) (*Files, error) {
	info, err := os.Stat(prefix)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("files storage: prefix %q must exist and be a directory: %w", prefix, err)
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(prefix, &stat); err == nil && stat.Type == nfsSuperMagic {
		return nil, fmt.Errorf("files storage: prefix %q is NFS-mounted, cannot safely mmap", prefix)
	}

	entries, err := os.ReadDir(prefix)
	if err != nil {
		return nil, fmt.Errorf("files storage: reading prefix %q: %w", prefix, err)
	}
	f := &Files{
		acc:         newAccounting(max),
		prefix:      prefix,
		persistency: make(map[domain.SegmentId]Persistency),
		mapped:      make(map[domain.SegmentId][]byte),
	}
	var maxSeen domain.SegmentId
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("files storage: prefix %q contains non-segment file %q: %w", prefix, e.Name(), err)
		}
		id := domain.SegmentId(n)
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		f.acc.sizeOfSeg[id] = domain.Size(info.Size())
		f.acc.used += domain.Size(info.Size())
		f.persistency[id] = Keep
		if id > maxSeen {
			maxSeen = id
		}
	}
	f.acc.nextSeg = maxSeen

	if w, err := fsnotify.NewWatcher(); err == nil {
		if err := w.Add(prefix); err == nil {
			f.watcher = w
			f.stop = make(chan struct{})
			go f.watchLoop()
		} else {
			w.Close()
		}
	}
	return f, nil
}

// watchLoop logs segment files removed or renamed under the prefix, and
// watcher errors. It does not change the storage's bookkeeping: files that
// appear are not picked up and removed files stay recorded as segments.
func (f *Files) watchLoop() {
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				log.Printf("[mcs/storage/files] external removal of %s", ev.Name)
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[mcs/storage/files] watch error: %v", err)
		case <-f.stop:
			return
		}
	}
}

func (f *Files) path(id domain.SegmentId) string {
	return filepath.Join(f.prefix, strconv.FormatUint(uint64(id), 10))
}

func (f *Files) Kind() domain.StorageImplementationId { return domain.ImplFiles }
func (f *Files) SizeMax() domain.MaxSize              { return f.acc.max }
func (f *Files) SizeUsed() domain.Size                { return f.acc.used_() }

// SegmentCreate touches the file, ftruncates it to size and records it with
// Remove persistency (the default).
func (f *Files) SegmentCreate(size domain.Size) (domain.SegmentId, error) {
	id, err := f.acc.reserve(size)
	if err != nil {
		return 0, err
	}
	fh, err := os.OpenFile(f.path(id), os.O_CREATE|os.O_RDWR, 0640)
	if err != nil {
		f.acc.release(id)
		return 0, fmt.Errorf("files storage: create %d: %w", id, err)
	}
	if err := fh.Truncate(int64(size)); err != nil {
		fh.Close()
		os.Remove(f.path(id))
		f.acc.release(id)
		return 0, fmt.Errorf("files storage: ftruncate %d: %w", id, err)
	}
	fh.Close()
	f.mu.Lock()
	f.persistency[id] = Remove
	f.mu.Unlock()
	return id, nil
}

// SetPersistency changes whether id's file is kept or removed on
// segment_remove.
func (f *Files) SetPersistency(id domain.SegmentId, p Persistency) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persistency[id] = p
}

func (f *Files) SegmentRemove(id domain.SegmentId) (domain.Size, error) {
	freed := f.acc.release(id)
	f.mu.Lock()
	p := f.persistency[id]
	delete(f.persistency, id)
	delete(f.mapped, id)
	f.mu.Unlock()
	if p != Keep {
		_ = os.Remove(f.path(id))
	}
	return freed, nil
}

func (f *Files) ChunkDescription(access domain.ChunkAccess, id domain.SegmentId, r domain.Range) (ChunkDescription, error) {
	size, ok := f.acc.sizeOf(id)
	if !ok {
		return ChunkDescription{}, &domain.UnknownSegmentIDError{Segment: id}
	}
	if err := checkRange(size, r); err != nil {
		return ChunkDescription{}, err
	}
	return ChunkDescription{Impl: domain.ImplFiles, Segment: id, Range: r, Access: access, Parameter: []byte(f.path(id))}, nil
}

// OpenChunk re-opens and mmaps the file on demand, respecting Access, per
// §4.1.
func (f *Files) OpenChunk(desc ChunkDescription) (Chunk, error) {
	if desc.Range.Length == 0 {
		return &filesChunk{access: desc.Access}, nil
	}
	flags := os.O_RDONLY
	prot := unix.PROT_READ
	if desc.Access == domain.Mutable {
		flags = os.O_RDWR
		prot = unix.PROT_READ | unix.PROT_WRITE
	}
	path := f.path(desc.Segment)
	fh, err := os.OpenFile(path, flags, 0640)
	if err != nil {
		return nil, fmt.Errorf("files storage: open %s: %w", path, err)
	}
	data, err := unix.Mmap(int(fh.Fd()), int64(desc.Range.Begin), int(desc.Range.Length), prot, unix.MAP_SHARED)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("files storage: mmap %s: %w", path, err)
	}
	return &filesChunk{fh: fh, data: data, access: desc.Access}, nil
}

func (f *Files) FileRead(id domain.SegmentId, r domain.Range) ([]byte, error) {
	c, err := f.OpenChunk(ChunkDescription{Segment: id, Range: r, Access: domain.Const})
	if err != nil {
		return nil, err
	}
	defer c.Close()
	out := make([]byte, len(c.Bytes()))
	copy(out, c.Bytes())
	return out, nil
}

func (f *Files) FileWrite(id domain.SegmentId, offset domain.Offset, data []byte) (domain.Size, error) {
	size, ok := f.acc.sizeOf(id)
	if !ok {
		return 0, &domain.UnknownSegmentIDError{Segment: id}
	}
	r := domain.Range{Begin: offset, Length: domain.Size(len(data))}
	if err := checkRange(size, r); err != nil {
		return 0, err
	}
	c, err := f.OpenChunk(ChunkDescription{Segment: id, Range: r, Access: domain.Mutable})
	if err != nil {
		return 0, err
	}
	defer c.Close()
	n := copy(c.Bytes(), data)
	return domain.Size(n), nil
}

func (f *Files) Close() error {
	if f.watcher != nil {
		close(f.stop)
		f.watcher.Close()
	}
	return nil
}

type filesChunk struct {
	fh     *os.File
	data   []byte
	access domain.ChunkAccess
}

func (c *filesChunk) Bytes() []byte             { return c.data }
func (c *filesChunk) Access() domain.ChunkAccess { return c.access }

// Close is the scoped-release path: munmap then close, noexcept in spirit
// — a failure here is a diagnostic panic, never a silent leak.
func (c *filesChunk) Close() error {
	defer func() {
		if r := recover(); r != nil {
			panic(fmt.Sprintf("files storage: chunk release double-faulted: %v", r))
		}
	}()
	var err error
	if c.data != nil {
		err = unix.Munmap(c.data)
	}
	if c.fh != nil {
		if cerr := c.fh.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		panic(fmt.Sprintf("files storage: chunk release failed: %v", err))
	}
	return nil
}
