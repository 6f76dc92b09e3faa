package collection

import (
	"testing"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

func TestPlacementConstructRejectsGap(t *testing.T) {
	_, err := Construct([]Entry{
		{Storage: 1, Range: domain.Range{Begin: 0, Length: 10}},
		{Storage: 2, Range: domain.Range{Begin: 20, Length: 10}},
	})
	if _, ok := err.(*domain.RangesAreNotTouchingError); !ok {
		t.Fatalf("expected RangesAreNotTouchingError, got %#v", err)
	}
}

func TestPlacementConstructRejectsDuplicateStorage(t *testing.T) {
	_, err := Construct([]Entry{
		{Storage: 1, Range: domain.Range{Begin: 0, Length: 10}},
		{Storage: 1, Range: domain.Range{Begin: 10, Length: 10}},
	})
	if _, ok := err.(*domain.EmplaceDuplicateError); !ok {
		t.Fatalf("expected EmplaceDuplicateError, got %#v", err)
	}
}

func TestPlacementAppendTouching(t *testing.T) {
	p, err := Construct([]Entry{{Storage: 1, Range: domain.Range{Begin: 0, Length: 10}}})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if err := p.Append(Entry{Storage: 2, Range: domain.Range{Begin: 10, Length: 5}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if p.Size() != 15 {
		t.Fatalf("expected size 15, got %d", p.Size())
	}
	if err := p.Append(Entry{Storage: 3, Range: domain.Range{Begin: 20, Length: 5}}); err == nil {
		t.Fatalf("expected AppendRangesAreNotTouchingError for a gap")
	} else if _, ok := err.(*domain.AppendRangesAreNotTouchingError); !ok {
		t.Fatalf("expected AppendRangesAreNotTouchingError, got %#v", err)
	}
	if err := p.Append(Entry{Storage: 1, Range: domain.Range{Begin: 15, Length: 5}}); err == nil {
		t.Fatalf("expected EmplaceDuplicateError for a repeated storage id")
	}
}

func TestPlacementAppendBlockRejectsDuplicateWithinBlock(t *testing.T) {
	p, err := Construct(nil)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	err = p.AppendBlock([]Entry{
		{Storage: 1, Range: domain.Range{Begin: 0, Length: 5}},
		{Storage: 1, Range: domain.Range{Begin: 5, Length: 5}},
	})
	if _, ok := err.(*domain.EmplaceDuplicateError); !ok {
		t.Fatalf("expected EmplaceDuplicateError for a duplicate storage id within one block, got %#v", err)
	}
}

func TestPlacementAppendBlockAllowsStorageReuseAcrossBlocks(t *testing.T) {
	p, err := Construct([]Entry{
		{Storage: 1, Range: domain.Range{Begin: 0, Length: 10}},
		{Storage: 2, Range: domain.Range{Begin: 10, Length: 10}},
	})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	// A second growth over the same candidate list reuses storage ids
	// 1 and 2 in its own block; that must be accepted.
	err = p.AppendBlock([]Entry{
		{Storage: 1, Range: domain.Range{Begin: 20, Length: 5}},
		{Storage: 2, Range: domain.Range{Begin: 25, Length: 5}},
	})
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	if p.Size() != 30 {
		t.Fatalf("expected size 30, got %d", p.Size())
	}
}

func TestPlacementLocate(t *testing.T) {
	p, err := Construct([]Entry{
		{Storage: 1, Segment: 10, Range: domain.Range{Begin: 0, Length: 100}},
		{Storage: 2, Segment: 20, Range: domain.Range{Begin: 100, Length: 100}},
	})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	locs := p.Locate(domain.Range{Begin: 50, Length: 100})
	if len(locs) != 2 {
		t.Fatalf("expected 2 overlapping locations, got %d", len(locs))
	}
	if locs[0].Storage != 1 || locs[0].Range != (domain.Range{Begin: 50, Length: 50}) {
		t.Fatalf("unexpected first location: %+v", locs[0])
	}
	if locs[1].Storage != 2 || locs[1].Range != (domain.Range{Begin: 100, Length: 50}) {
		t.Fatalf("unexpected second location: %+v", locs[1])
	}
	if locs[1].EntryBegin != 100 {
		t.Fatalf("expected EntryBegin 100, got %d", locs[1].EntryBegin)
	}
}
