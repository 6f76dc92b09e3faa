package rangeliteral

import (
	"testing"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

func TestParseWellFormed(t *testing.T) {
	r, err := Parse("[10,20)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r != (domain.Range{Begin: 10, Length: 10}) {
		t.Fatalf("unexpected range: %+v", r)
	}
}

func TestParseWithSpacing(t *testing.T) {
	r, err := Parse("[ 0, 4096 )")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r != (domain.Range{Begin: 0, Length: 4096}) {
		t.Fatalf("unexpected range: %+v", r)
	}
}

func TestParseEndBeforeBeginIsError(t *testing.T) {
	if _, err := Parse("[20,10)"); err == nil {
		t.Fatalf("expected an error for end preceding begin")
	}
}

func TestParseMalformedIsError(t *testing.T) {
	for _, s := range []string{"", "10,20", "[10,20]", "[a,b)"} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("expected an error parsing %q", s)
		}
	}
}
