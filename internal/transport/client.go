package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/wire"
)

// Client is one connection to a Provider. A single Client only ever has
// one request in flight at a time (mu serializes call/MemoryGet/
// MemoryPut against each other, since the response for any one of them
// has to be read off the same connection before the next request can be
// written): callers that want concurrent requests against the same
// provider dial multiple Clients themselves. ClientCache keeps one Client
// per endpoint, so callers sharing it queue on that one connection.
type Client struct {
	conn   net.Conn
	nextID atomic.Uint64
	mu     sync.Mutex
}

// Dial connects to endpoint.
func Dial(ctx context.Context, endpoint Endpoint) (*Client, error) {
	conn, err := endpoint.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", endpoint, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// call sends a request and blocks for its matching response. Holding mu
// for the whole round trip is what makes a single Client safe for
// concurrent callers without needing per-request demultiplexing: requests
// queue instead of interleaving on the wire.
func (c *Client) call(kind wire.CommandKind, args *wire.Encoder) (*wire.Decoder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID.Add(1)
	if err := wire.WriteFrame(c.conn, encodeRequest(id, kind, args)); err != nil {
		return nil, err
	}
	payload, err := wire.ReadFrame(c.conn)
	if err != nil {
		return nil, err
	}
	respID, result, rpcErr, err := decodeResponseHeader(payload)
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return nil, rpcErr
	}
	if respID != id {
		return nil, fmt.Errorf("transport: response id mismatch for %s: got %d, want %d", kind, respID, id)
	}
	return result, nil
}

// --- control RPCs ---

func (c *Client) StorageCreate(impl domain.StorageImplementationId, max domain.MaxSize, config []byte) (domain.StorageId, error) {
	e := wire.NewEncoder()
	e.PutImpl(impl)
	e.PutMaxSize(max)
	e.PutBytes(config)
	d, err := c.call(wire.CmdStorageCreate, e)
	if err != nil {
		return 0, err
	}
	return d.GetStorageID()
}

func (c *Client) StorageRemove(id domain.StorageId) error {
	e := wire.NewEncoder()
	e.PutStorageID(id)
	_, err := c.call(wire.CmdStorageRemove, e)
	return err
}

func (c *Client) StorageSizeMax(id domain.StorageId) (domain.MaxSize, error) {
	e := wire.NewEncoder()
	e.PutStorageID(id)
	d, err := c.call(wire.CmdStorageSizeMax, e)
	if err != nil {
		return domain.MaxSize{}, err
	}
	return d.GetMaxSize()
}

func (c *Client) StorageSizeUsed(id domain.StorageId) (domain.Size, error) {
	e := wire.NewEncoder()
	e.PutStorageID(id)
	d, err := c.call(wire.CmdStorageSizeUsed, e)
	if err != nil {
		return 0, err
	}
	return d.GetSize()
}

func (c *Client) StorageSize(id domain.StorageId) (domain.MaxSize, domain.Size, error) {
	e := wire.NewEncoder()
	e.PutStorageID(id)
	d, err := c.call(wire.CmdStorageSize, e)
	if err != nil {
		return domain.MaxSize{}, 0, err
	}
	max, err := d.GetMaxSize()
	if err != nil {
		return domain.MaxSize{}, 0, err
	}
	used, err := d.GetSize()
	return max, used, err
}

func (c *Client) SegmentCreate(id domain.StorageId, size domain.Size) (domain.SegmentId, error) {
	e := wire.NewEncoder()
	e.PutStorageID(id)
	e.PutSize(size)
	d, err := c.call(wire.CmdSegmentCreate, e)
	if err != nil {
		return 0, err
	}
	return d.GetSegmentID()
}

func (c *Client) SegmentRemove(id domain.StorageId, seg domain.SegmentId) (domain.Size, error) {
	e := wire.NewEncoder()
	e.PutStorageID(id)
	e.PutSegmentID(seg)
	d, err := c.call(wire.CmdSegmentRemove, e)
	if err != nil {
		return 0, err
	}
	return d.GetSize()
}

func (c *Client) ChunkDescription(id domain.StorageId, access domain.ChunkAccess, seg domain.SegmentId, rng domain.Range) (storage.ChunkDescription, error) {
	e := wire.NewEncoder()
	e.PutStorageID(id)
	e.PutChunkAccess(access)
	e.PutSegmentID(seg)
	e.PutRange(rng)
	d, err := c.call(wire.CmdChunkDescription, e)
	if err != nil {
		return storage.ChunkDescription{}, err
	}
	return getChunkDescription(d)
}

func (c *Client) FileRead(id domain.StorageId, seg domain.SegmentId, rng domain.Range) ([]byte, error) {
	e := wire.NewEncoder()
	e.PutStorageID(id)
	e.PutSegmentID(seg)
	e.PutRange(rng)
	d, err := c.call(wire.CmdFileRead, e)
	if err != nil {
		return nil, err
	}
	return d.GetBytes()
}

func (c *Client) FileWrite(id domain.StorageId, seg domain.SegmentId, offset domain.Offset, data []byte) (domain.Size, error) {
	e := wire.NewEncoder()
	e.PutStorageID(id)
	e.PutSegmentID(seg)
	e.PutOffset(offset)
	e.PutBytes(data)
	d, err := c.call(wire.CmdFileWrite, e)
	if err != nil {
		return 0, err
	}
	return d.GetSize()
}

// --- transport (bulk) RPCs ---
//
// MemoryGet/MemoryPut don't fit call()'s single length-prefixed
// round trip because the bulk payload rides the same connection outside
// any frame: Get's payload follows the response frame, Put's payload
// precedes it. Both still hold mu for the whole operation, same as call.

// MemoryGet asks the provider to resolve source locally and stream size
// bytes back into dst (which must have length >= size). destination is
// carried for bookkeeping only; see handleMemoryGet's doc comment.
func (c *Client) MemoryGet(source, destination domain.TransportAddress, size domain.Size, dst []byte) (domain.Size, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID.Add(1)
	e := wire.NewEncoder()
	e.PutTransportAddress(source)
	e.PutTransportAddress(destination)
	e.PutSize(size)
	if err := wire.WriteFrame(c.conn, encodeRequest(id, wire.CmdMemoryGet, e)); err != nil {
		return 0, err
	}
	payload, err := wire.ReadFrame(c.conn)
	if err != nil {
		return 0, err
	}
	respID, args, rpcErr, err := decodeResponseHeader(payload)
	if err != nil {
		return 0, err
	}
	if rpcErr != nil {
		return 0, rpcErr
	}
	if respID != id {
		return 0, fmt.Errorf("transport: memory_get response id mismatch: got %d, want %d", respID, id)
	}
	transferred, err := args.GetSize()
	if err != nil {
		return 0, err
	}
	if domain.Size(len(dst)) < transferred {
		return 0, &domain.ShortTransferError{Op: "memory_get", Expected: transferred, Actual: domain.Size(len(dst))}
	}
	n, err := io.ReadFull(c.conn, dst[:transferred])
	return domain.Size(n), err
}

// MemoryPut streams src to the provider, which writes it into destination.
func (c *Client) MemoryPut(destination, source domain.TransportAddress, src []byte) (domain.Size, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID.Add(1)
	e := wire.NewEncoder()
	e.PutTransportAddress(destination)
	e.PutTransportAddress(source)
	e.PutSize(domain.Size(len(src)))
	if err := wire.WriteFrame(c.conn, encodeRequest(id, wire.CmdMemoryPut, e)); err != nil {
		return 0, err
	}
	if _, err := wire.CopyPayload(c.conn, newByteReader(src), uint64(len(src))); err != nil {
		return 0, err
	}
	payload, err := wire.ReadFrame(c.conn)
	if err != nil {
		return 0, err
	}
	respID, args, rpcErr, err := decodeResponseHeader(payload)
	if err != nil {
		return 0, err
	}
	if rpcErr != nil {
		return 0, rpcErr
	}
	if respID != id {
		return 0, fmt.Errorf("transport: memory_put response id mismatch: got %d, want %d", respID, id)
	}
	return args.GetSize()
}
