//go:build ceph

package storage

import (
	"fmt"
	"sync"

	"github.com/ceph/go-ceph/rados"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// CephConfig mirrors the teacher's CephFactory (storage/persistence-ceph.go)
// field for field.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// Ceph is a storage implementation whose segments are RADOS objects.
// Unlike S3, RADOS natively supports reads and writes at an arbitrary
// offset (rados.IOContext.Write/Read), so chunk access does not need the
// read-modify-write staging the S3 implementation uses.
type Ceph struct {
	acc *accounting
	cfg CephConfig

	mu     sync.Mutex
	conn   *rados.Conn
	ioctx  *rados.IOContext
	opened bool
}

func NewCeph(max domain.MaxSize, cfg CephConfig) *Ceph {
	return &Ceph{acc: newAccounting(max), cfg: cfg}
}

func (c *Ceph) ensureOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return nil
	}
	conn, err := rados.NewConnWithClusterAndUser(c.cfg.ClusterName, c.cfg.UserName)
	if err != nil {
		return fmt.Errorf("ceph storage: connect: %w", err)
	}
	if c.cfg.ConfFile != "" {
		if err := conn.ReadConfigFile(c.cfg.ConfFile); err != nil {
			return fmt.Errorf("ceph storage: read conf: %w", err)
		}
	} else {
		_ = conn.ReadDefaultConfigFile()
	}
	if err := conn.Connect(); err != nil {
		return fmt.Errorf("ceph storage: connect: %w", err)
	}
	ioctx, err := conn.OpenIOContext(c.cfg.Pool)
	if err != nil {
		conn.Shutdown()
		return fmt.Errorf("ceph storage: open pool %s: %w", c.cfg.Pool, err)
	}
	c.conn = conn
	c.ioctx = ioctx
	c.opened = true
	return nil
}

func (c *Ceph) obj(id domain.SegmentId) string {
	return fmt.Sprintf("%s/segment-%d", c.cfg.Prefix, id)
}

func (c *Ceph) Kind() domain.StorageImplementationId { return domain.ImplCeph }
func (c *Ceph) SizeMax() domain.MaxSize              { return c.acc.max }
func (c *Ceph) SizeUsed() domain.Size                { return c.acc.used_() }

func (c *Ceph) SegmentCreate(size domain.Size) (domain.SegmentId, error) {
	id, err := c.acc.reserve(size)
	if err != nil {
		return 0, err
	}
	if err := c.ensureOpen(); err != nil {
		c.acc.release(id)
		return 0, err
	}
	if err := c.ioctx.WriteFull(c.obj(id), make([]byte, size)); err != nil {
		c.acc.release(id)
		return 0, fmt.Errorf("ceph storage: create segment %d: %w", id, err)
	}
	return id, nil
}

func (c *Ceph) SegmentRemove(id domain.SegmentId) (domain.Size, error) {
	freed := c.acc.release(id)
	if c.opened {
		_ = c.ioctx.Delete(c.obj(id))
	}
	return freed, nil
}

func (c *Ceph) ChunkDescription(access domain.ChunkAccess, id domain.SegmentId, r domain.Range) (ChunkDescription, error) {
	size, ok := c.acc.sizeOf(id)
	if !ok {
		return ChunkDescription{}, &domain.UnknownSegmentIDError{Segment: id}
	}
	if err := checkRange(size, r); err != nil {
		return ChunkDescription{}, err
	}
	return ChunkDescription{Impl: domain.ImplCeph, Segment: id, Range: r, Access: access, Parameter: []byte(c.obj(id))}, nil
}

func (c *Ceph) OpenChunk(desc ChunkDescription) (Chunk, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	return &cephChunk{c: c, obj: string(desc.Parameter), rng: desc.Range, access: desc.Access}, nil
}

func (c *Ceph) FileRead(id domain.SegmentId, r domain.Range) ([]byte, error) {
	ch, err := c.OpenChunk(ChunkDescription{Segment: id, Range: r, Access: domain.Const, Parameter: []byte(c.obj(id))})
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	return ch.Bytes(), nil
}

func (c *Ceph) FileWrite(id domain.SegmentId, offset domain.Offset, data []byte) (domain.Size, error) {
	size, ok := c.acc.sizeOf(id)
	if !ok {
		return 0, &domain.UnknownSegmentIDError{Segment: id}
	}
	r := domain.Range{Begin: offset, Length: domain.Size(len(data))}
	if err := checkRange(size, r); err != nil {
		return 0, err
	}
	if err := c.ensureOpen(); err != nil {
		return 0, err
	}
	if err := c.ioctx.Write(c.obj(id), data, uint64(offset)); err != nil {
		return 0, fmt.Errorf("ceph storage: write %d: %w", id, err)
	}
	return domain.Size(len(data)), nil
}

func (c *Ceph) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		c.ioctx.Destroy()
		c.conn.Shutdown()
		c.opened = false
	}
	return nil
}

type cephChunk struct {
	c      *Ceph
	obj    string
	rng    domain.Range
	data   []byte
	access domain.ChunkAccess
}

func (ch *cephChunk) Bytes() []byte {
	if ch.data == nil {
		ch.data = make([]byte, ch.rng.Length)
		_, _ = ch.c.ioctx.Read(ch.obj, ch.data, uint64(ch.rng.Begin))
	}
	return ch.data
}
func (ch *cephChunk) Access() domain.ChunkAccess { return ch.access }

func (ch *cephChunk) Close() error {
	if ch.access != domain.Mutable || ch.data == nil {
		return nil
	}
	return ch.c.ioctx.Write(ch.obj, ch.data, uint64(ch.rng.Begin))
}
