// Package transport implements the control and transport RPC providers and
// clients (§4.3): the network-facing layer that lets a remote process
// drive a Storages registry (storage/segment/chunk-description lifecycle
// commands) and move bytes in and out of it (memory_get/memory_put) over
// TCP or a UNIX domain socket.
//
// The provider's per-connection goroutine loop mirrors the teacher's own
// node server accept loop (cmd/memcp's listener goroutine-per-connection
// pattern); the length-prefixed command/response framing is
// internal/wire, generalized from the teacher's S3 log-segment framing.
package transport

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/registry"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/wire"
)

// Provider serves one command set (ControlCommandSet or
// TransportCommandSet, or both multiplexed onto one listener) against a
// Registry.
type Provider struct {
	reg      *registry.Registry
	listener net.Listener
	commands map[wire.CommandKind]bool
	policy   AccessPolicy

	// exclusiveMu is held for the whole handling of one request when
	// policy is Exclusive, serializing every connection's requests
	// against each other.
	exclusiveMu sync.Mutex

	logger *log.Logger
}

// NewProvider starts listening at endpoint and returns a Provider ready
// for Serve. commands restricts which CommandKind values this provider
// accepts; pass wire.ControlCommandSet, wire.TransportCommandSet, or a
// union of both.
func NewProvider(reg *registry.Registry, endpoint Endpoint, commands map[wire.CommandKind]bool, policy AccessPolicy, logger *log.Logger) (*Provider, error) {
	ln, err := endpoint.Listen()
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", endpoint, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Provider{reg: reg, listener: ln, commands: commands, policy: policy, logger: logger}, nil
}

// Addr returns the listener's bound address, useful when Endpoint was
// constructed with a ":0" port and the caller needs the one the kernel
// actually picked.
func (p *Provider) Addr() net.Addr { return p.listener.Addr() }

// Close stops accepting new connections. In-flight connections are left
// to finish or hit a read error on their own.
func (p *Provider) Close() error { return p.listener.Close() }

// Serve accepts connections until the listener is closed, handling each
// on its own goroutine. It returns nil when Close caused the accept loop
// to end, any other error otherwise.
func (p *Provider) Serve() error {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go p.handleConn(conn)
	}
}

// handleConn owns one connection end to end: under Exclusive/Sequential
// it reads one request, handles it, writes the response, and loops; under
// Concurrent it dispatches each request to its own goroutine as soon as
// it's read, guarding writes with writeMu so responses never interleave
// mid-frame.
func (p *Provider) handleConn(conn net.Conn) {
	defer conn.Close()
	var writeMu sync.Mutex
	var wg sync.WaitGroup
	for {
		payload, err := wire.ReadFrame(conn)
		if err != nil {
			break
		}
		req, err := decodeRequest(payload)
		if err != nil {
			p.logger.Printf("transport: malformed request from %s: %v", conn.RemoteAddr(), err)
			break
		}
		if p.policy == Concurrent {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.dispatchAndReply(conn, &writeMu, req)
			}()
			continue
		}
		p.dispatchAndReply(conn, &writeMu, req)
	}
	wg.Wait()
}

func (p *Provider) dispatchAndReply(conn net.Conn, writeMu *sync.Mutex, req request) {
	if p.policy == Exclusive {
		p.exclusiveMu.Lock()
		defer p.exclusiveMu.Unlock()
	}
	resp, stream, err := p.dispatch(conn, req)
	if err != nil {
		writeMu.Lock()
		_ = wire.WriteFrame(conn, encodeErrorResponse(req.id, err))
		writeMu.Unlock()
		return
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := wire.WriteFrame(conn, resp); err != nil {
		return
	}
	if stream.size > 0 {
		if _, err := wire.CopyPayload(conn, stream.r, stream.size); err != nil {
			p.logger.Printf("transport: stream reply to %s: %v", conn.RemoteAddr(), err)
		}
		if c, ok := stream.r.(io.Closer); ok {
			c.Close()
		}
	}
}

// rawStream describes payload bytes a response needs to stream after its
// header frame (memory_get's chunk contents); size 0 means none.
type rawStream struct {
	r    io.Reader
	size uint64
}

// dispatch handles one request and returns its header-frame response plus
// an optional raw payload to stream after it. For commands whose payload
// arrives *before* the response (memory_put), dispatch itself reads that
// payload directly off conn.
func (p *Provider) dispatch(conn net.Conn, req request) ([]byte, rawStream, error) {
	if !p.commands[req.kind] {
		return nil, rawStream{}, &domain.UnsupportedError{Reason: fmt.Sprintf("command %s not served by this provider", req.kind)}
	}
	switch req.kind {
	case wire.CmdStorageCreate:
		return p.handleStorageCreate(req)
	case wire.CmdStorageRemove:
		return p.handleStorageRemove(req)
	case wire.CmdStorageSizeMax:
		return p.handleStorageSizeMax(req)
	case wire.CmdStorageSizeUsed:
		return p.handleStorageSizeUsed(req)
	case wire.CmdStorageSize:
		return p.handleStorageSize(req)
	case wire.CmdSegmentCreate:
		return p.handleSegmentCreate(req)
	case wire.CmdSegmentRemove:
		return p.handleSegmentRemove(req)
	case wire.CmdChunkDescription:
		return p.handleChunkDescription(req)
	case wire.CmdFileRead:
		return p.handleFileRead(req)
	case wire.CmdFileWrite:
		return p.handleFileWrite(req)
	case wire.CmdMemoryGet:
		return p.handleMemoryGet(req)
	case wire.CmdMemoryPut:
		return p.handleMemoryPut(conn, req)
	default:
		return nil, rawStream{}, &domain.UnsupportedError{Reason: fmt.Sprintf("unknown command %s", req.kind)}
	}
}
