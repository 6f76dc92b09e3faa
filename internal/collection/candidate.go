package collection

import (
	"container/heap"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/transport"
)

// Candidate is one storage a placement policy may draw from: its
// remaining capacity and the provider endpoint a client dials to reach
// it.
type Candidate struct {
	Storage  domain.StorageId
	Endpoint transport.Endpoint
	Capacity domain.Size
}

// Share is one storage's slice of a placement, before a Segment has been
// created for it.
type Share struct {
	Storage  domain.StorageId
	Endpoint transport.Endpoint
	Range    domain.Range // collection-relative, zero-based for a fresh allocation
}

// candidateHeap is a max-heap by remaining capacity, the fill order
// AsEqualAsPossible draws from (§4.5.1: "fills from a max-heap of
// (storage-id, capacity) pairs").
type candidateHeap []Candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].Capacity > h[j].Capacity }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// asEqualAsPossible implements the AsEqualAsPossible distribution policy:
// spread total over every candidate storage, each holding an equal share
// (differing by at most one byte), the extra byte going to the
// largest-capacity candidates first, never exceeding any candidate's
// capacity. It drains candidates off a max-heap (largest capacity first)
// into draw order, computes the one floor/ceil split across all of them,
// and fails with BadAllocError if that split doesn't fit every
// candidate's capacity — it does not fall back to using fewer storages,
// since the original distribution always touches every storage handed to
// it (confirmed by the original implementation's
// non_empty_iterates_all_elements behavior).
func asEqualAsPossible(candidates []Candidate, total domain.Size) ([]Share, error) {
	if total == 0 {
		return nil, nil
	}
	if len(candidates) == 0 {
		return nil, &domain.BadAllocError{Requested: total, Used: 0, Max: 0}
	}

	h := make(candidateHeap, len(candidates))
	copy(h, candidates)
	heap.Init(&h)

	used := make([]Candidate, len(candidates))
	var sumCapacity domain.Size
	for i := range used {
		used[i] = heap.Pop(&h).(Candidate)
		sumCapacity += used[i].Capacity
	}

	k := uint64(len(used))
	base := uint64(total) / k
	rem := uint64(total) % k

	shares := make([]domain.Size, len(used))
	for i, c := range used {
		share := base
		if uint64(i) < rem {
			share++
		}
		shares[i] = domain.Size(share)
		if c.Capacity < shares[i] {
			return nil, &domain.BadAllocError{Requested: total, Used: 0, Max: sumCapacity}
		}
	}

	out := make([]Share, len(used))
	offset := domain.Offset(0)
	for i, c := range used {
		out[i] = Share{
			Storage:  c.Storage,
			Endpoint: c.Endpoint,
			Range:    domain.Range{Begin: offset, Length: shares[i]},
		}
		offset += domain.Offset(shares[i])
	}
	return out, nil
}
