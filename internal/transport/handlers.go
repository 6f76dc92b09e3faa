package transport

import (
	"net"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/wire"
)

// handleStorageCreate decodes (impl, maxSize, config) and publishes a
// freshly constructed storage.Implementation, returning its new
// StorageId.
func (p *Provider) handleStorageCreate(req request) ([]byte, rawStream, error) {
	impl, err := req.args.GetImpl()
	if err != nil {
		return nil, rawStream{}, err
	}
	max, err := req.args.GetMaxSize()
	if err != nil {
		return nil, rawStream{}, err
	}
	config, err := req.args.GetBytes()
	if err != nil {
		return nil, rawStream{}, err
	}
	inst, err := NewImplementationFromConfig(impl, max, config)
	if err != nil {
		return nil, rawStream{}, err
	}
	id := p.reg.CreateStorage(inst)
	e := wire.NewEncoder()
	e.PutStorageID(id)
	return encodeOKResponse(req.id, e), rawStream{}, nil
}

func (p *Provider) handleStorageRemove(req request) ([]byte, rawStream, error) {
	id, err := req.args.GetStorageID()
	if err != nil {
		return nil, rawStream{}, err
	}
	if err := p.reg.RemoveStorage(id); err != nil {
		return nil, rawStream{}, err
	}
	return encodeOKResponse(req.id, wire.NewEncoder()), rawStream{}, nil
}

func (p *Provider) handleStorageSizeMax(req request) ([]byte, rawStream, error) {
	id, err := req.args.GetStorageID()
	if err != nil {
		return nil, rawStream{}, err
	}
	max, err := p.reg.SizeMax(id)
	if err != nil {
		return nil, rawStream{}, err
	}
	e := wire.NewEncoder()
	e.PutMaxSize(max)
	return encodeOKResponse(req.id, e), rawStream{}, nil
}

func (p *Provider) handleStorageSizeUsed(req request) ([]byte, rawStream, error) {
	id, err := req.args.GetStorageID()
	if err != nil {
		return nil, rawStream{}, err
	}
	used, err := p.reg.SizeUsed(id)
	if err != nil {
		return nil, rawStream{}, err
	}
	e := wire.NewEncoder()
	e.PutSize(used)
	return encodeOKResponse(req.id, e), rawStream{}, nil
}

func (p *Provider) handleStorageSize(req request) ([]byte, rawStream, error) {
	id, err := req.args.GetStorageID()
	if err != nil {
		return nil, rawStream{}, err
	}
	max, err := p.reg.SizeMax(id)
	if err != nil {
		return nil, rawStream{}, err
	}
	used, err := p.reg.SizeUsed(id)
	if err != nil {
		return nil, rawStream{}, err
	}
	e := wire.NewEncoder()
	e.PutMaxSize(max)
	e.PutSize(used)
	return encodeOKResponse(req.id, e), rawStream{}, nil
}

func (p *Provider) handleSegmentCreate(req request) ([]byte, rawStream, error) {
	id, err := req.args.GetStorageID()
	if err != nil {
		return nil, rawStream{}, err
	}
	size, err := req.args.GetSize()
	if err != nil {
		return nil, rawStream{}, err
	}
	seg, err := p.reg.SegmentCreate(id, size)
	if err != nil {
		return nil, rawStream{}, err
	}
	e := wire.NewEncoder()
	e.PutSegmentID(seg)
	return encodeOKResponse(req.id, e), rawStream{}, nil
}

func (p *Provider) handleSegmentRemove(req request) ([]byte, rawStream, error) {
	id, err := req.args.GetStorageID()
	if err != nil {
		return nil, rawStream{}, err
	}
	seg, err := req.args.GetSegmentID()
	if err != nil {
		return nil, rawStream{}, err
	}
	freed, err := p.reg.SegmentRemove(id, seg)
	if err != nil {
		return nil, rawStream{}, err
	}
	e := wire.NewEncoder()
	e.PutSize(freed)
	return encodeOKResponse(req.id, e), rawStream{}, nil
}

func (p *Provider) handleChunkDescription(req request) ([]byte, rawStream, error) {
	id, err := req.args.GetStorageID()
	if err != nil {
		return nil, rawStream{}, err
	}
	access, err := req.args.GetChunkAccess()
	if err != nil {
		return nil, rawStream{}, err
	}
	seg, err := req.args.GetSegmentID()
	if err != nil {
		return nil, rawStream{}, err
	}
	rng, err := req.args.GetRange()
	if err != nil {
		return nil, rawStream{}, err
	}
	desc, err := p.reg.ChunkDescription(id, access, seg, rng)
	if err != nil {
		return nil, rawStream{}, err
	}
	e := wire.NewEncoder()
	putChunkDescription(e, desc)
	return encodeOKResponse(req.id, e), rawStream{}, nil
}

func putChunkDescription(e *wire.Encoder, d storage.ChunkDescription) {
	e.PutImpl(d.Impl)
	e.PutSegmentID(d.Segment)
	e.PutRange(d.Range)
	e.PutChunkAccess(d.Access)
	e.PutBytes(d.Parameter)
}

func getChunkDescription(d *wire.Decoder) (storage.ChunkDescription, error) {
	impl, err := d.GetImpl()
	if err != nil {
		return storage.ChunkDescription{}, err
	}
	seg, err := d.GetSegmentID()
	if err != nil {
		return storage.ChunkDescription{}, err
	}
	rng, err := d.GetRange()
	if err != nil {
		return storage.ChunkDescription{}, err
	}
	access, err := d.GetChunkAccess()
	if err != nil {
		return storage.ChunkDescription{}, err
	}
	param, err := d.GetBytes()
	if err != nil {
		return storage.ChunkDescription{}, err
	}
	return storage.ChunkDescription{Impl: impl, Segment: seg, Range: rng, Access: access, Parameter: param}, nil
}

// handleFileRead reads a Range out of a segment and returns it inline in
// the response frame (unlike memory_get, file_read is a control command
// and is not expected to carry the high-volume bulk path, §4.3).
func (p *Provider) handleFileRead(req request) ([]byte, rawStream, error) {
	id, err := req.args.GetStorageID()
	if err != nil {
		return nil, rawStream{}, err
	}
	seg, err := req.args.GetSegmentID()
	if err != nil {
		return nil, rawStream{}, err
	}
	rng, err := req.args.GetRange()
	if err != nil {
		return nil, rawStream{}, err
	}
	tok, err := p.reg.AcquireRead(id)
	if err != nil {
		return nil, rawStream{}, err
	}
	impl, err := tok.Implementation(p.reg)
	if err != nil {
		return nil, rawStream{}, err
	}
	data, err := impl.FileRead(seg, rng)
	if err != nil {
		return nil, rawStream{}, err
	}
	e := wire.NewEncoder()
	e.PutBytes(data)
	return encodeOKResponse(req.id, e), rawStream{}, nil
}

func (p *Provider) handleFileWrite(req request) ([]byte, rawStream, error) {
	id, err := req.args.GetStorageID()
	if err != nil {
		return nil, rawStream{}, err
	}
	seg, err := req.args.GetSegmentID()
	if err != nil {
		return nil, rawStream{}, err
	}
	offset, err := req.args.GetOffset()
	if err != nil {
		return nil, rawStream{}, err
	}
	data, err := req.args.GetBytes()
	if err != nil {
		return nil, rawStream{}, err
	}
	tok, err := p.reg.AcquireWrite(id)
	if err != nil {
		return nil, rawStream{}, err
	}
	impl, err := tok.Implementation(p.reg)
	if err != nil {
		return nil, rawStream{}, err
	}
	n, err := impl.FileWrite(seg, offset, data)
	if err != nil {
		return nil, rawStream{}, err
	}
	e := wire.NewEncoder()
	e.PutSize(n)
	return encodeOKResponse(req.id, e), rawStream{}, nil
}

// handleMemoryGet resolves Source locally (the provider's own registry)
// and streams that chunk's bytes back after the header frame. Destination
// is carried only as the caller's own bookkeeping of where the bytes will
// land on its side — the provider never looks it up (§4.3 design note:
// memory_get/memory_put name both ends for symmetry and tracing, but each
// RPC call only ever resolves the end that is local to the provider it
// was sent to; the other end is always the raw stream itself).
func (p *Provider) handleMemoryGet(req request) ([]byte, rawStream, error) {
	source, err := req.args.GetTransportAddress()
	if err != nil {
		return nil, rawStream{}, err
	}
	if _, err := req.args.GetTransportAddress(); err != nil { // destination, unused server-side
		return nil, rawStream{}, err
	}
	size, err := req.args.GetSize()
	if err != nil {
		return nil, rawStream{}, err
	}
	desc, err := p.reg.ChunkDescription(source.Storage, domain.Const, source.Segment, domain.Range{Begin: source.Offset, Length: size})
	if err != nil {
		return nil, rawStream{}, err
	}
	chunk, err := p.reg.OpenChunk(source.Storage, desc)
	if err != nil {
		return nil, rawStream{}, err
	}
	bs := chunk.Bytes()
	if domain.Size(len(bs)) != size {
		chunk.Close()
		return nil, rawStream{}, &domain.ShortTransferError{Op: "memory_get", Expected: size, Actual: domain.Size(len(bs))}
	}
	e := wire.NewEncoder()
	e.PutSize(size)
	return encodeOKResponse(req.id, e), rawStream{r: &closingReader{r: newByteReader(bs), c: chunk}, size: uint64(size)}, nil
}

// handleMemoryPut resolves Destination locally and reads Size raw bytes
// directly off conn into the chunk's own backing slice (zero-copy for
// every mmap-backed implementation: Heap, SHMEM, Files).
func (p *Provider) handleMemoryPut(conn net.Conn, req request) ([]byte, rawStream, error) {
	destination, err := req.args.GetTransportAddress()
	if err != nil {
		return nil, rawStream{}, err
	}
	if _, err := req.args.GetTransportAddress(); err != nil { // source, unused server-side
		return nil, rawStream{}, err
	}
	size, err := req.args.GetSize()
	if err != nil {
		return nil, rawStream{}, err
	}
	desc, err := p.reg.ChunkDescription(destination.Storage, domain.Mutable, destination.Segment, domain.Range{Begin: destination.Offset, Length: size})
	if err != nil {
		return nil, rawStream{}, err
	}
	chunk, err := p.reg.OpenChunk(destination.Storage, desc)
	if err != nil {
		return nil, rawStream{}, err
	}
	defer chunk.Close()
	bs := chunk.Bytes()
	if domain.Size(len(bs)) != size {
		return nil, rawStream{}, &domain.ShortTransferError{Op: "memory_put", Expected: size, Actual: domain.Size(len(bs))}
	}
	n, err := wire.CopyPayload(newByteWriter(bs), conn, uint64(size))
	if err != nil {
		return nil, rawStream{}, err
	}
	e := wire.NewEncoder()
	e.PutSize(domain.Size(n))
	return encodeOKResponse(req.id, e), rawStream{}, nil
}
