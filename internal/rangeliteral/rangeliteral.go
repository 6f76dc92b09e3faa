// Package rangeliteral parses the `[begin,end)` Range literal syntax §6
// names for the CLI utilities, using the same atom/regex/and combinator
// shape the teacher assembles its own (parser ...) builtin grammars out
// of (scm/packrat.go's parseSyntax), applied here to one fixed grammar
// instead of a user-supplied syntax tree.
package rangeliteral

import (
	"fmt"
	"strconv"

	packrat "github.com/launix-de/go-packrat/v2"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

func grammar() packrat.Parser {
	digits := packrat.NewRegexParser(`[0-9]+`, false, true)
	return packrat.NewAndParser(
		packrat.NewAtomParser("[", false, true),
		digits,
		packrat.NewAtomParser(",", false, true),
		digits,
		packrat.NewAtomParser(")", false, true),
	)
}

// Parse decodes a half-open `[begin,end)` range literal into a
// domain.Range.
func Parse(s string) (domain.Range, error) {
	scanner := packrat.NewScanner(s, packrat.SkipWhitespaceAndCommentsRegex)
	node, err := packrat.Parse(grammar(), scanner)
	if err != nil {
		return domain.Range{}, fmt.Errorf("rangeliteral: parse %q: %w", s, err)
	}
	if node == nil || len(node.Children) != 5 {
		return domain.Range{}, fmt.Errorf("rangeliteral: malformed range literal %q", s)
	}
	begin, err := strconv.ParseUint(node.Children[1].Matched, 10, 64)
	if err != nil {
		return domain.Range{}, fmt.Errorf("rangeliteral: bad begin in %q: %w", s, err)
	}
	end, err := strconv.ParseUint(node.Children[3].Matched, 10, 64)
	if err != nil {
		return domain.Range{}, fmt.Errorf("rangeliteral: bad end in %q: %w", s, err)
	}
	if end < begin {
		return domain.Range{}, fmt.Errorf("rangeliteral: end %d precedes begin %d", end, begin)
	}
	return domain.Range{Begin: domain.Offset(begin), Length: domain.Size(end - begin)}, nil
}
