package collection

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// firstErrorBox collects the first error reported by any of several
// concurrent sub-transfers, discarding the rest — §5's "completion order
// of a multi-location request is unspecified," so there is no meaningful
// way to prefer one failure over another beyond "first observed."
type firstErrorBox struct {
	mu  sync.Mutex
	err error
}

func (b *firstErrorBox) set(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
}

func (b *firstErrorBox) get() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// directTransfer implements §4.5.3's direct path: the caller's buffer is
// itself a registered shared buffer, so sub-transfers read/write straight
// into it with no intermediate copy. Each sub-transfer acquires a stream
// token from the engine-wide bounded semaphore before being dispatched,
// but the token is released the instant the sub-transfer's goroutine is
// launched, not when it completes — a known limitation named in §4.5.3:
// the semaphore bounds the rate at which sub-transfers are enqueued, not
// how many are concurrently in flight.
func (c *Collection) directTransfer(ctx context.Context, buf []byte, r domain.Range, locs []Location, write bool) (domain.Size, error) {
	var wg sync.WaitGroup
	var total atomic.Uint64
	var errs firstErrorBox

	for _, loc := range locs {
		cl, err := c.node.Clients.Get(ctx, loc.Endpoint)
		if err != nil {
			return 0, err
		}
		for _, sub := range splitTransfer(loc.Range, c.node.Direct.MaximumTransferSize) {
			c.node.directTokens <- struct{}{} // acquire a stream token
			wg.Add(1)
			go func(sub domain.Range) {
				defer wg.Done()
				bufOffset := int(sub.Begin - r.Begin)
				addr := domain.TransportAddress{Storage: loc.Storage, Segment: loc.Segment, Offset: sub.Begin - loc.EntryBegin}

				var n domain.Size
				var err error
				if write {
					n, err = cl.MemoryPut(addr, domain.TransportAddress{}, buf[bufOffset:bufOffset+int(sub.Length)])
				} else {
					n, err = cl.MemoryGet(addr, domain.TransportAddress{}, domain.Size(sub.Length), buf[bufOffset:bufOffset+int(sub.Length)])
				}
				if err != nil {
					errs.set(err)
					return
				}
				total.Add(uint64(n))
			}(sub)
			<-c.node.directTokens // released at enqueue time, not completion
		}
	}
	wg.Wait()
	return domain.Size(total.Load()), errs.get()
}
