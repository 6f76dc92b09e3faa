// Package domain holds the scalar and identifier types shared across the
// storage, transport, block-device and collection layers: byte sizes and
// offsets, ranges, the closed set of storage implementation kinds, and the
// process-local identifiers that name storages, segments and chunks.
package domain

import "fmt"

// Size is an unsigned byte count.
type Size uint64

// Offset is a signed byte position within an address space. Negative
// offsets are only ever rejected, never wrapped.
type Offset int64

// Range is a half-open [Begin, Begin+Length) byte range.
type Range struct {
	Begin  Offset
	Length Size
}

// End returns the exclusive end of the range.
func (r Range) End() Offset {
	return r.Begin + Offset(r.Length)
}

// Touches reports whether r immediately precedes other with no gap and no
// overlap, i.e. r.End() == other.Begin.
func (r Range) Touches(other Range) bool {
	return r.End() == other.Begin
}

// Overlaps reports whether r and other share at least one byte.
func (r Range) Overlaps(other Range) bool {
	return r.Begin < other.End() && other.Begin < r.End()
}

// Contains reports whether other is fully contained in r.
func (r Range) Contains(other Range) bool {
	return other.Begin >= r.Begin && other.End() <= r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Begin, r.End())
}

// MaxSize is either Unlimited or a concrete byte Limit.
type MaxSize struct {
	unlimited bool
	limit     Size
}

// Unlimited returns a MaxSize with no upper bound.
func Unlimited() MaxSize { return MaxSize{unlimited: true} }

// Limit returns a MaxSize bounded to n bytes.
func Limit(n Size) MaxSize { return MaxSize{limit: n} }

// IsUnlimited reports whether m carries no bound.
func (m MaxSize) IsUnlimited() bool { return m.unlimited }

// Value returns the bound and true, or (0, false) if unbounded.
func (m MaxSize) Value() (Size, bool) {
	if m.unlimited {
		return 0, false
	}
	return m.limit, true
}

func (m MaxSize) String() string {
	if m.unlimited {
		return "Unlimited"
	}
	return fmt.Sprintf("Limit(%d)", m.limit)
}

// StorageImplementationId identifies a compiled-in storage implementation
// variant. The base spec names Heap/SHMEM/Files/ImportedC; this port adds
// S3 and Ceph as additional variants (see SPEC_FULL.md §B).
type StorageImplementationId int

const (
	ImplHeap StorageImplementationId = iota
	ImplSHMEM
	ImplFiles
	ImplImportedC
	ImplS3
	ImplCeph
)

func (i StorageImplementationId) String() string {
	switch i {
	case ImplHeap:
		return "Heap"
	case ImplSHMEM:
		return "SHMEM"
	case ImplFiles:
		return "Files"
	case ImplImportedC:
		return "ImportedC"
	case ImplS3:
		return "S3"
	case ImplCeph:
		return "Ceph"
	default:
		return fmt.Sprintf("StorageImplementationId(%d)", int(i))
	}
}

// StorageId is a process-local, monotonically issued identifier for a
// Storage instance. Zero is never issued, so it can serve as "no id".
type StorageId uint64

// SegmentId is unique within one storage.
type SegmentId uint64

// ChunkAccess governs read/write privileges on a chunk's byte span.
type ChunkAccess int

const (
	Const ChunkAccess = iota
	Mutable
)

func (a ChunkAccess) String() string {
	if a == Mutable {
		return "Mutable"
	}
	return "Const"
}

// TransportAddress is a routable reference to one byte position inside one
// segment of one storage on the provider that issued it.
type TransportAddress struct {
	Storage   StorageId
	Parameter []byte // storage-implementation-specific routing parameter
	Segment   SegmentId
	Offset    Offset
}
