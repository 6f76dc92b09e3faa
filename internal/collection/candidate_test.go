package collection

import (
	"testing"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

func TestAsEqualAsPossibleUsesEveryCandidate(t *testing.T) {
	candidates := []Candidate{
		{Storage: 1, Capacity: 2048},
		{Storage: 2, Capacity: 2048},
		{Storage: 3, Capacity: 2048},
	}
	shares, err := asEqualAsPossible(candidates, 999)
	if err != nil {
		t.Fatalf("asEqualAsPossible: %v", err)
	}
	if len(shares) != len(candidates) {
		t.Fatalf("expected every candidate to receive a share, got %d shares", len(shares))
	}
	for _, s := range shares {
		if s.Range.Length != 333 {
			t.Fatalf("expected an even 333-byte split, got %d", s.Range.Length)
		}
	}
}

func TestAsEqualAsPossibleSplitsWithImbalanceAtMostOne(t *testing.T) {
	candidates := []Candidate{
		{Storage: 1, Capacity: 1000},
		{Storage: 2, Capacity: 1000},
	}
	shares, err := asEqualAsPossible(candidates, 1001)
	if err != nil {
		t.Fatalf("asEqualAsPossible: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}
	var total domain.Size
	min, max := shares[0].Range.Length, shares[0].Range.Length
	for _, s := range shares {
		total += s.Range.Length
		if s.Range.Length < min {
			min = s.Range.Length
		}
		if s.Range.Length > max {
			max = s.Range.Length
		}
	}
	if total != 1001 {
		t.Fatalf("shares don't sum to total: %d", total)
	}
	if max-min > 1 {
		t.Fatalf("imbalance exceeds 1 unit: min=%d max=%d", min, max)
	}
}

func TestAsEqualAsPossibleContiguousFromZero(t *testing.T) {
	candidates := []Candidate{{Storage: 1, Capacity: 500}, {Storage: 2, Capacity: 500}}
	shares, err := asEqualAsPossible(candidates, 500)
	if err != nil {
		t.Fatalf("asEqualAsPossible: %v", err)
	}
	if shares[0].Range.Begin != 0 {
		t.Fatalf("expected first share to start at 0, got %d", shares[0].Range.Begin)
	}
	for i := 1; i < len(shares); i++ {
		if !shares[i-1].Range.Touches(shares[i].Range) {
			t.Fatalf("shares %d and %d don't touch: %v %v", i-1, i, shares[i-1].Range, shares[i].Range)
		}
	}
}

func TestAsEqualAsPossibleInfeasibleIsBadAlloc(t *testing.T) {
	candidates := []Candidate{{Storage: 1, Capacity: 9}, {Storage: 2, Capacity: 1}, {Storage: 3, Capacity: 1}}
	if _, err := asEqualAsPossible(candidates, 10); err == nil {
		t.Fatalf("expected an error when equal shares can't fit despite sufficient aggregate capacity")
	} else if _, ok := err.(*domain.BadAllocError); !ok {
		t.Fatalf("expected *domain.BadAllocError, got %#v", err)
	}
}

func TestAsEqualAsPossibleZeroTotalIsEmpty(t *testing.T) {
	shares, err := asEqualAsPossible([]Candidate{{Storage: 1, Capacity: 10}}, 0)
	if err != nil {
		t.Fatalf("asEqualAsPossible: %v", err)
	}
	if len(shares) != 0 {
		t.Fatalf("expected no shares for a zero-size placement, got %d", len(shares))
	}
}
