package blockdevice

import (
	"context"
	"fmt"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/transport"
)

// ClientFactory produces a transport.Client for a given endpoint,
// typically backed by a transport.ClientCache so repeated reads/writes
// against the same location reuse one connection.
type ClientFactory func(ctx context.Context, endpoint transport.Endpoint) (*transport.Client, error)

// Reader performs one block read: a Device.Location lookup in this
// process (no control round-trip is made) followed by one memory_get bulk
// round-trip.
type Reader struct {
	device  *Device
	clients ClientFactory
}

func NewReader(device *Device, clients ClientFactory) *Reader {
	return &Reader{device: device, clients: clients}
}

// Read fetches block id's full contents. A short transfer (the remote
// returning fewer bytes than BlockSize) is a fatal error, not a partial
// result, since callers address the device in whole blocks.
func (r *Reader) Read(ctx context.Context, id BlockId) ([]byte, error) {
	endpoint, addr, err := r.device.Location(id)
	if err != nil {
		return nil, err
	}
	client, err := r.clients(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("blockdevice: dial %s for block %d: %w", endpoint, id, err)
	}
	buf := make([]byte, r.device.BlockSize())
	n, err := client.MemoryGet(addr, domain.TransportAddress{}, r.device.BlockSize(), buf)
	if err != nil {
		return nil, err
	}
	if n != r.device.BlockSize() {
		return nil, &domain.ShortTransferError{Op: "block read", Expected: r.device.BlockSize(), Actual: n}
	}
	return buf, nil
}

// Writer performs one block write: a Device.Location lookup in this
// process (no control round-trip is made) followed by one memory_put bulk
// round-trip.
type Writer struct {
	device  *Device
	clients ClientFactory
}

func NewWriter(device *Device, clients ClientFactory) *Writer {
	return &Writer{device: device, clients: clients}
}

// Write stores data as block id's full contents. len(data) must equal the
// device's BlockSize.
func (w *Writer) Write(ctx context.Context, id BlockId, data []byte) error {
	if domain.Size(len(data)) != w.device.BlockSize() {
		return &domain.ShortTransferError{Op: "block write", Expected: w.device.BlockSize(), Actual: domain.Size(len(data))}
	}
	endpoint, addr, err := w.device.Location(id)
	if err != nil {
		return err
	}
	client, err := w.clients(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("blockdevice: dial %s for block %d: %w", endpoint, id, err)
	}
	n, err := client.MemoryPut(addr, domain.TransportAddress{}, data)
	if err != nil {
		return err
	}
	if n != w.device.BlockSize() {
		return &domain.ShortTransferError{Op: "block write", Expected: w.device.BlockSize(), Actual: n}
	}
	return nil
}
