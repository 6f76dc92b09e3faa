// Package blockdevice implements the fixed-size block-addressing layer
// (§4.4): a dense BlockId space carved into non-overlapping BlockRanges,
// each mapping onto a prefix of some registered Storage's byte address
// space, ordered the same way the teacher orders its column delta index —
// a google/btree.BTreeG keyed by range start, generalized here from
// "sorted in-memory row deltas" (storage/index.go's deltaBtree) to "sorted
// block-range-to-storage mappings."
package blockdevice

import (
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/transport"
)

// BlockId is a dense, zero-based block index.
type BlockId uint64

// BlockRange is a contiguous, half-open run of BlockIds: [Begin, Begin+Count).
type BlockRange struct {
	Begin BlockId
	Count uint64
}

func (r BlockRange) End() BlockId { return r.Begin + BlockId(r.Count) }

func (r BlockRange) String() string { return fmt.Sprintf("[%d,%d)", r.Begin, r.End()) }

func (r BlockRange) overlaps(other BlockRange) bool {
	return r.Begin < other.End() && other.Begin < r.End()
}

func (r BlockRange) intersect(other BlockRange) (BlockRange, bool) {
	begin := r.Begin
	if other.Begin > begin {
		begin = other.Begin
	}
	end := r.End()
	if other.End() < end {
		end = other.End()
	}
	if begin >= end {
		return BlockRange{}, false
	}
	return BlockRange{Begin: begin, Count: uint64(end - begin)}, true
}

// StorageWithRange tags a byte Range inside one Storage's Segment, the
// "unused" descriptor add()/remove() hand back for bytes that are no
// longer (or were never) part of the device's block mapping.
type StorageWithRange struct {
	Storage domain.StorageId
	Segment domain.SegmentId
	Range   domain.Range
}

// mapping is one occupied BlockRange's backing storage location. Blocks
// map linearly onto bytes starting at ByteOffset, so block b's byte
// offset is ByteOffset + (b-Blocks.Begin)*BlockSize.
type mapping struct {
	Blocks     BlockRange
	Storage    domain.StorageId
	Segment    domain.SegmentId
	ByteOffset domain.Offset
	Endpoint   transport.Endpoint
}

func mappingLess(a, b *mapping) bool { return a.Blocks.Begin < b.Blocks.Begin }

// Device is the meta-data half of a block device: the ordered set of
// BlockRange-to-storage mappings. It holds no data itself — Reader/Writer
// use it only for location lookups before issuing the actual transfer.
type Device struct {
	mu        sync.Mutex
	blockSize domain.Size
	tree      *btree.BTreeG[*mapping]
	nextBlock BlockId // append cursor for Add, one past the last occupied block
}

// NewDevice returns an empty device with the given block size.
func NewDevice(blockSize domain.Size) *Device {
	return &Device{blockSize: blockSize, tree: btree.NewG[*mapping](8, mappingLess)}
}

func (d *Device) BlockSize() domain.Size { return d.blockSize }

// Add appends as many whole blocks as fit in a segment of segmentSize
// bytes on the given storage, at the device's current append cursor.
// Leftover bytes that don't fill a whole block are reported back as
// unused rather than silently dropped.
func (d *Device) Add(storageID domain.StorageId, segment domain.SegmentId, segmentSize domain.Size, endpoint transport.Endpoint) (BlockRange, StorageWithRange, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	count := uint64(segmentSize) / uint64(d.blockSize)
	usedBytes := domain.Size(count) * d.blockSize
	leftover := StorageWithRange{
		Storage: storageID,
		Segment: segment,
		Range:   domain.Range{Begin: domain.Offset(usedBytes), Length: segmentSize - usedBytes},
	}
	if count == 0 {
		return BlockRange{}, leftover, nil
	}
	blocks := BlockRange{Begin: d.nextBlock, Count: count}
	d.tree.ReplaceOrInsert(&mapping{Blocks: blocks, Storage: storageID, Segment: segment, ByteOffset: 0, Endpoint: endpoint})
	d.nextBlock = blocks.End()
	return blocks, leftover, nil
}

// Remove excises r from the occupied block space, splitting or dropping
// whichever mappings it overlaps, and returns every storage byte range
// that r's removal freed.
func (d *Device) Remove(r BlockRange) ([]StorageWithRange, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var overlapping []*mapping
	d.tree.Ascend(func(m *mapping) bool {
		if m.Blocks.overlaps(r) {
			overlapping = append(overlapping, m)
		}
		return true
	})

	var unused []StorageWithRange
	for _, m := range overlapping {
		overlap, ok := m.Blocks.intersect(r)
		if !ok {
			continue
		}
		unused = append(unused, StorageWithRange{
			Storage: m.Storage,
			Segment: m.Segment,
			Range:   domain.Range{Begin: d.byteOffsetOf(m, overlap.Begin), Length: domain.Size(overlap.Count) * d.blockSize},
		})
		d.tree.Delete(m)
		if overlap.Begin > m.Blocks.Begin {
			left := &mapping{
				Blocks:     BlockRange{Begin: m.Blocks.Begin, Count: uint64(overlap.Begin - m.Blocks.Begin)},
				Storage:    m.Storage,
				Segment:    m.Segment,
				ByteOffset: m.ByteOffset,
				Endpoint:   m.Endpoint,
			}
			d.tree.ReplaceOrInsert(left)
		}
		if overlap.End() < m.Blocks.End() {
			right := &mapping{
				Blocks:     BlockRange{Begin: overlap.End(), Count: uint64(m.Blocks.End() - overlap.End())},
				Storage:    m.Storage,
				Segment:    m.Segment,
				ByteOffset: d.byteOffsetOf(m, overlap.End()),
				Endpoint:   m.Endpoint,
			}
			d.tree.ReplaceOrInsert(right)
		}
	}
	return unused, nil
}

func (d *Device) byteOffsetOf(m *mapping, block BlockId) domain.Offset {
	return m.ByteOffset + domain.Offset(uint64(block-m.Blocks.Begin)*uint64(d.blockSize))
}

// Location resolves id to the provider endpoint and TransportAddress of
// the storage it lives in.
func (d *Device) Location(id BlockId) (transport.Endpoint, domain.TransportAddress, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var found *mapping
	d.tree.DescendLessOrEqual(&mapping{Blocks: BlockRange{Begin: id, Count: 0}}, func(m *mapping) bool {
		if m.Blocks.Begin <= id && id < m.Blocks.End() {
			found = m
		}
		return false
	})
	if found == nil {
		return transport.Endpoint{}, domain.TransportAddress{}, &domain.BlockNotInAnyStorageError{BlockID: uint64(id)}
	}
	return found.Endpoint, domain.TransportAddress{
		Storage: found.Storage,
		Segment: found.Segment,
		Offset:  d.byteOffsetOf(found, id),
	}, nil
}

// Blocks returns the set of occupied BlockRanges, in ascending order, with
// adjacent mappings coalesced into one reported range — the device may
// hold several internal mappings back to back (one per Add call) that
// together form a single touching run, and §4.4's acceptance scenario
// expects that run reported as one BlockRange, not one per storage.
func (d *Device) Blocks() []BlockRange {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []BlockRange
	d.tree.Ascend(func(m *mapping) bool {
		if n := len(out); n > 0 && out[n-1].End() == m.Blocks.Begin {
			out[n-1].Count += m.Blocks.Count
		} else {
			out = append(out, m.Blocks)
		}
		return true
	})
	return out
}
