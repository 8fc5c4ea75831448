package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/biogo/store/interval"
)

// coordScale converts a float progression endpoint into the integer
// coordinate space interval.Tree requires. Range-directive values carry
// at most a handful of decimal digits, so truncating to millionths is
// lossless for every value this grammar produces.
const coordScale = 1e6

// Progression is one parsed range-directive value: the inclusive
// arithmetic progression start:step:end, an open-ended "i-end[:k]"
// range, or the literal "Marker" token standing in for the set of
// marker positions.
type Progression struct {
	Start, End, Step float64
	OpenEnded        bool
	IsMarker         bool
}

func (p Progression) String() string {
	switch {
	case p.IsMarker:
		return "Marker"
	case p.OpenEnded:
		return fmt.Sprintf("%g-end:%g", p.Start, p.Step)
	case p.Step == 0:
		return strconv.FormatFloat(p.Start, 'g', -1, 64)
	default:
		return fmt.Sprintf("%g-%g:%g", p.Start, p.End, p.Step)
	}
}

// rangeNode adapts a Progression to interval.Interface so RangeSet can
// answer containment queries with an interval tree instead of a linear
// scan.
type rangeNode struct {
	id uintptr
	r  interval.IntRange
	p  Progression
}

func (n *rangeNode) Overlap(b interval.IntRange) bool { return n.r.Start < b.End && b.Start < n.r.End }
func (n *rangeNode) ID() uintptr                      { return n.id }
func (n *rangeNode) Range() interval.IntRange         { return n.r }
func (n *rangeNode) String() string                   { return n.p.String() }

// RangeSet is the parsed value of a list-valued range directive: an
// ordered list of progressions, plus an interval tree over their
// numeric span for fast containment queries.
type RangeSet struct {
	Progressions []Progression
	tree         *interval.Tree
	nextID       uintptr
}

// NewRangeSet returns an empty RangeSet.
func NewRangeSet() *RangeSet {
	return &RangeSet{tree: &interval.Tree{}}
}

// Len reports the number of progressions added to rs.
func (rs *RangeSet) Len() int { return len(rs.Progressions) }

// Add appends p to rs and indexes its numeric span, if it has one
// ("Marker" progressions have no fixed numeric span and are skipped).
func (rs *RangeSet) Add(p Progression) error {
	rs.Progressions = append(rs.Progressions, p)
	if p.IsMarker {
		return nil
	}
	end := p.End
	if p.OpenEnded {
		// An open-ended range has no far boundary; index a single
		// representative point at its start so Overlaps can still see it.
		end = p.Start
	}
	lo := int(p.Start * coordScale)
	hi := int(end*coordScale) + 1
	if hi <= lo {
		hi = lo + 1
	}
	n := &rangeNode{id: rs.nextID, r: interval.IntRange{Start: lo, End: hi}, p: p}
	rs.nextID++
	if err := rs.tree.Insert(n, false); err != nil {
		return err
	}
	rs.tree.AdjustRanges()
	return nil
}

// Overlaps reports whether any progression in rs covers v.
func (rs *RangeSet) Overlaps(v float64) bool {
	q := &rangeNode{r: interval.IntRange{Start: int(v * coordScale), End: int(v*coordScale) + 1}}
	return len(rs.tree.Get(q)) > 0
}

// ParseRangeTokens parses a directive's argument tokens, one
// progression per token, into a RangeSet.
func ParseRangeTokens(tokens []string) (*RangeSet, error) {
	rs := NewRangeSet()
	for _, tok := range tokens {
		p, err := parseProgression(tok)
		if err != nil {
			return nil, err
		}
		if err := rs.Add(p); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// parseProgression parses one "i-j:k" / "i-end[:k]" / "Marker" / bare
// value token.
func parseProgression(tok string) (Progression, error) {
	if strings.EqualFold(tok, "Marker") {
		return Progression{IsMarker: true}, nil
	}

	dash := strings.IndexByte(tok, '-')
	if dash <= 0 {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return Progression{}, fmt.Errorf("config: invalid range value %q", tok)
		}
		return Progression{Start: v, End: v}, nil
	}

	startStr, rest := tok[:dash], tok[dash+1:]
	start, err := strconv.ParseFloat(startStr, 64)
	if err != nil {
		return Progression{}, fmt.Errorf("config: invalid range start %q", tok)
	}

	endStr, step := rest, 1.0
	if colon := strings.IndexByte(rest, ':'); colon >= 0 {
		endStr = rest[:colon]
		step, err = strconv.ParseFloat(rest[colon+1:], 64)
		if err != nil {
			return Progression{}, fmt.Errorf("config: invalid range step %q", tok)
		}
	}

	if strings.EqualFold(endStr, "end") {
		return Progression{Start: start, Step: step, OpenEnded: true}, nil
	}
	end, err := strconv.ParseFloat(endStr, 64)
	if err != nil {
		return Progression{}, fmt.Errorf("config: invalid range end %q", tok)
	}
	return Progression{Start: start, End: end, Step: step}, nil
}
