package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// Encoder accumulates a command or response payload using the same
// fixed-width-scalar / length-prefixed-string / tagged-variant encoding
// throughout, so every MCS message is built the same way regardless of
// which RPC it belongs to.
type Encoder struct {
	buf bytes.Buffer
}

func NewEncoder() *Encoder { return &Encoder{} }

func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) PutUint8(v uint8)   { e.buf.WriteByte(v) }
func (e *Encoder) PutUint32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); e.buf.Write(b[:]) }
func (e *Encoder) PutUint64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); e.buf.Write(b[:]) }
func (e *Encoder) PutInt64(v int64)   { e.PutUint64(uint64(v)) }

// PutBytes writes a length-prefixed byte vector.
func (e *Encoder) PutBytes(b []byte) {
	e.PutUint32(uint32(len(b)))
	e.buf.Write(b)
}

func (e *Encoder) PutString(s string) { e.PutBytes([]byte(s)) }

func (e *Encoder) PutSize(v domain.Size)     { e.PutUint64(uint64(v)) }
func (e *Encoder) PutOffset(v domain.Offset) { e.PutInt64(int64(v)) }

func (e *Encoder) PutRange(r domain.Range) {
	e.PutOffset(r.Begin)
	e.PutSize(r.Length)
}

// PutMaxSize encodes the Unlimited/Limit(n) variant as a tag byte followed
// by the active alternative (§6: "variants emit a tag then the active
// alternative").
func (e *Encoder) PutMaxSize(m domain.MaxSize) {
	if limit, bounded := m.Value(); bounded {
		e.PutUint8(1)
		e.PutSize(limit)
	} else {
		e.PutUint8(0)
	}
}

func (e *Encoder) PutStorageID(id domain.StorageId) { e.PutUint64(uint64(id)) }
func (e *Encoder) PutSegmentID(id domain.SegmentId) { e.PutUint64(uint64(id)) }
func (e *Encoder) PutChunkAccess(a domain.ChunkAccess) {
	if a == domain.Mutable {
		e.PutUint8(1)
	} else {
		e.PutUint8(0)
	}
}
func (e *Encoder) PutImpl(i domain.StorageImplementationId) { e.PutUint8(uint8(i)) }

func (e *Encoder) PutTransportAddress(a domain.TransportAddress) {
	e.PutStorageID(a.Storage)
	e.PutBytes(a.Parameter)
	e.PutSegmentID(a.Segment)
	e.PutOffset(a.Offset)
}

// Decoder is the dual of Encoder. Every Get* method fails with an error
// instead of panicking on short input, since a truncated frame on the wire
// must surface as a protocol error, not a process crash.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(b []byte) *Decoder { return &Decoder{buf: b} }

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return fmt.Errorf("wire: short frame: need %d bytes at offset %d, have %d", n, d.pos, len(d.buf))
	}
	return nil
}

func (d *Decoder) GetUint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *Decoder) GetUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) GetUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *Decoder) GetInt64() (int64, error) {
	v, err := d.GetUint64()
	return int64(v), err
}

func (d *Decoder) GetBytes() ([]byte, error) {
	n, err := d.GetUint32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return out, nil
}

func (d *Decoder) GetString() (string, error) {
	b, err := d.GetBytes()
	return string(b), err
}

func (d *Decoder) GetSize() (domain.Size, error) {
	v, err := d.GetUint64()
	return domain.Size(v), err
}

func (d *Decoder) GetOffset() (domain.Offset, error) {
	v, err := d.GetInt64()
	return domain.Offset(v), err
}

func (d *Decoder) GetRange() (domain.Range, error) {
	begin, err := d.GetOffset()
	if err != nil {
		return domain.Range{}, err
	}
	length, err := d.GetSize()
	if err != nil {
		return domain.Range{}, err
	}
	return domain.Range{Begin: begin, Length: length}, nil
}

func (d *Decoder) GetMaxSize() (domain.MaxSize, error) {
	tag, err := d.GetUint8()
	if err != nil {
		return domain.MaxSize{}, err
	}
	if tag == 0 {
		return domain.Unlimited(), nil
	}
	limit, err := d.GetSize()
	if err != nil {
		return domain.MaxSize{}, err
	}
	return domain.Limit(limit), nil
}

func (d *Decoder) GetStorageID() (domain.StorageId, error) {
	v, err := d.GetUint64()
	return domain.StorageId(v), err
}

func (d *Decoder) GetSegmentID() (domain.SegmentId, error) {
	v, err := d.GetUint64()
	return domain.SegmentId(v), err
}

func (d *Decoder) GetChunkAccess() (domain.ChunkAccess, error) {
	v, err := d.GetUint8()
	if err != nil {
		return 0, err
	}
	if v == 1 {
		return domain.Mutable, nil
	}
	return domain.Const, nil
}

func (d *Decoder) GetImpl() (domain.StorageImplementationId, error) {
	v, err := d.GetUint8()
	return domain.StorageImplementationId(v), err
}

func (d *Decoder) GetTransportAddress() (domain.TransportAddress, error) {
	storageID, err := d.GetStorageID()
	if err != nil {
		return domain.TransportAddress{}, err
	}
	param, err := d.GetBytes()
	if err != nil {
		return domain.TransportAddress{}, err
	}
	segment, err := d.GetSegmentID()
	if err != nil {
		return domain.TransportAddress{}, err
	}
	offset, err := d.GetOffset()
	if err != nil {
		return domain.TransportAddress{}, err
	}
	return domain.TransportAddress{Storage: storageID, Parameter: param, Segment: segment, Offset: offset}, nil
}

// Remaining returns the unconsumed tail of the buffer, used by handlers
// that stream raw payload bytes immediately after a fixed header (e.g.
// memory_put's command header is followed by Size bytes of payload read
// directly off the connection, not through the Decoder).
func (d *Decoder) Remaining() []byte { return d.buf[d.pos:] }
