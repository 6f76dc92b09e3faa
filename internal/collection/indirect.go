package collection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// indirectTransfer implements §4.5.3's indirect path: the caller's buffer
// is not a registered shared buffer, so every sub-transfer stages through
// a slot of the engine's communication buffer instead of touching remote
// memory directly. A per-call counting semaphore
// (Indirect.MaximumNumberOfParallelStreams) bounds how many sub-transfers
// of this one call run at once; slot acquisition itself is independently
// gated by the comm buffer's bitmap with its own timeout.
func (c *Collection) indirectTransfer(ctx context.Context, buf []byte, r domain.Range, locs []Location, write bool) (domain.Size, error) {
	sem := make(chan struct{}, maxInt(1, c.node.Indirect.MaximumNumberOfParallelStreams))
	deadline := time.Duration(c.node.Indirect.AcquireBufferTimeoutMilliseconds) * time.Millisecond

	// A sub-transfer stages through exactly one comm-buffer slot, so it
	// can never exceed the slot size regardless of what
	// maximum_transfer_size configures (§4.5.3: the buffer is
	// number_of_buffers × maximum_transfer_size, i.e. slot size *is* the
	// max transfer size) — clamp to whichever bound is tighter.
	splitSize := c.node.Comm.SlotSize()
	if m := c.node.Indirect.MaximumTransferSize; m > 0 && m < splitSize {
		splitSize = m
	}

	var wg sync.WaitGroup
	var total atomic.Uint64
	var errs firstErrorBox

	for _, loc := range locs {
		cl, err := c.node.Clients.Get(ctx, loc.Endpoint)
		if err != nil {
			return 0, err
		}
		for _, sub := range splitTransfer(loc.Range, splitSize) {
			sem <- struct{}{}
			wg.Add(1)
			go func(sub domain.Range) {
				defer wg.Done()
				defer func() { <-sem }()

				slotIdx, slot, err := c.node.Comm.Acquire(ctx, deadline)
				if err != nil {
					errs.set(err)
					return
				}
				defer c.node.Comm.Release(slotIdx)

				bufOffset := int(sub.Begin - r.Begin)
				addr := domain.TransportAddress{Storage: loc.Storage, Segment: loc.Segment, Offset: sub.Begin - loc.EntryBegin}

				var n domain.Size
				if write {
					copy(slot[:sub.Length], buf[bufOffset:bufOffset+int(sub.Length)])
					n, err = cl.MemoryPut(addr, domain.TransportAddress{}, slot[:sub.Length])
				} else {
					n, err = cl.MemoryGet(addr, domain.TransportAddress{}, domain.Size(sub.Length), slot[:sub.Length])
					if err == nil {
						copy(buf[bufOffset:bufOffset+int(n)], slot[:n])
					}
				}
				if err != nil {
					errs.set(err)
					return
				}
				total.Add(uint64(n))
			}(sub)
		}
	}
	wg.Wait()
	return domain.Size(total.Load()), errs.get()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
