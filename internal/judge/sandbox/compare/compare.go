// Package compare decides whether a program's output matches the expected answer.
package compare

import (
	"math"
	"sort"
	"strconv"
	"strings"

	appErr "codejudge/pkg/errors"
)

const (
	NameExact     = "exact"
	NameFloat     = "float"
	NameUnordered = "unordered"

	defaultEpsilon = 1e-6
)

// Comparator compares actual output against the expected answer.
type Comparator interface {
	Name() string
	Compare(actual, expected string) bool
}

// Lookup returns the comparator registered under name. Empty means exact.
func Lookup(name string) (Comparator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameExact:
		return Exact{}, nil
	case NameFloat:
		return Float{Epsilon: defaultEpsilon}, nil
	case NameUnordered:
		return UnorderedLines{}, nil
	default:
		return nil, appErr.Newf(appErr.ComparatorNotFound, "unknown comparator %q", name)
	}
}

// Normalize converts CRLF and CR to LF and trims surrounding whitespace.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// Exact requires equality after Normalize.
type Exact struct{}

func (Exact) Name() string { return NameExact }

func (Exact) Compare(actual, expected string) bool {
	return Normalize(actual) == Normalize(expected)
}

// Float compares line by line and token by token. Numeric tokens match when
// |a-b| <= eps*(1+max(|a|,|b|)); other tokens must be identical.
type Float struct {
	Epsilon float64
}

func (Float) Name() string { return NameFloat }

func (f Float) Compare(actual, expected string) bool {
	eps := f.Epsilon
	if eps <= 0 {
		eps = defaultEpsilon
	}
	gotLines := strings.Split(Normalize(actual), "\n")
	wantLines := strings.Split(Normalize(expected), "\n")
	if len(gotLines) != len(wantLines) {
		return false
	}
	for i := range gotLines {
		got := strings.Fields(gotLines[i])
		want := strings.Fields(wantLines[i])
		if len(got) != len(want) {
			return false
		}
		for j := range got {
			if !tokensMatch(got[j], want[j], eps) {
				return false
			}
		}
	}
	return true
}

func tokensMatch(got, want string, eps float64) bool {
	g, gErr := strconv.ParseFloat(got, 64)
	w, wErr := strconv.ParseFloat(want, 64)
	switch {
	case gErr != nil && wErr != nil:
		return got == want
	case gErr != nil || wErr != nil:
		return false
	case math.IsNaN(g) || math.IsNaN(w):
		return math.IsNaN(g) && math.IsNaN(w)
	case math.IsInf(g, 0) || math.IsInf(w, 0):
		return g == w
	}
	tolerance := eps * (1 + math.Max(math.Abs(g), math.Abs(w)))
	return math.Abs(g-w) <= tolerance
}

// UnorderedLines treats output as a multiset of trimmed, non-empty lines.
type UnorderedLines struct{}

func (UnorderedLines) Name() string { return NameUnordered }

func (UnorderedLines) Compare(actual, expected string) bool {
	got := sortedLines(actual)
	want := sortedLines(expected)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func sortedLines(s string) []string {
	raw := strings.Split(Normalize(s), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	sort.Strings(lines)
	return lines
}
