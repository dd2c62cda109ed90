package compare_test

import (
	"testing"

	"codejudge/internal/judge/sandbox/compare"
	appErr "codejudge/pkg/errors"
)

func TestExact(t *testing.T) {
	cases := []struct {
		name     string
		actual   string
		expected string
		want     bool
	}{
		{name: "identical", actual: "5", expected: "5", want: true},
		{name: "trailing newline", actual: "5\n", expected: "5", want: true},
		{name: "surrounding whitespace", actual: "  5 \n\n", expected: "\t5", want: true},
		{name: "crlf", actual: "1\r\n2\r\n", expected: "1\n2", want: true},
		{name: "bare cr", actual: "1\r2", expected: "1\n2", want: true},
		{name: "inner whitespace matters", actual: "1  2", expected: "1 2", want: false},
		{name: "different", actual: "6", expected: "5", want: false},
		{name: "both empty", actual: "", expected: "  \n", want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (compare.Exact{}).Compare(tc.actual, tc.expected); got != tc.want {
				t.Fatalf("Compare(%q, %q) = %v, want %v", tc.actual, tc.expected, got, tc.want)
			}
		})
	}
}

func TestFloat(t *testing.T) {
	cases := []struct {
		name     string
		actual   string
		expected string
		want     bool
	}{
		{name: "within tolerance", actual: "3.1415926", expected: "3.14159265", want: true},
		{name: "outside tolerance", actual: "3.14", expected: "3.15", want: false},
		{name: "relative for large values", actual: "1000000.5", expected: "1000000.0", want: true},
		{name: "mixed tokens", actual: "answer 0.3333333", expected: "answer 0.33333333", want: true},
		{name: "word mismatch", actual: "yes 1.0", expected: "no 1.0", want: false},
		{name: "number vs word", actual: "1.0", expected: "one", want: false},
		{name: "token count", actual: "1 2", expected: "1 2 3", want: false},
		{name: "line count", actual: "1\n2", expected: "1", want: false},
		{name: "crlf", actual: "1.0\r\n2.0\r\n", expected: "1\n2", want: true},
		{name: "nan", actual: "NaN", expected: "nan", want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (compare.Float{Epsilon: 1e-6}).Compare(tc.actual, tc.expected); got != tc.want {
				t.Fatalf("Compare(%q, %q) = %v, want %v", tc.actual, tc.expected, got, tc.want)
			}
		})
	}
}

func TestUnorderedLines(t *testing.T) {
	c := compare.UnorderedLines{}
	if !c.Compare("b\na\nc\n", "a\nb\nc") {
		t.Fatalf("expected permutation to match")
	}
	if c.Compare("a\na\nb", "a\nb\nb") {
		t.Fatalf("expected multiset mismatch")
	}
	if !c.Compare("  x \r\n\r\ny", "y\nx") {
		t.Fatalf("expected blank lines and padding to be ignored")
	}
}

func TestLookup(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{name: "", want: compare.NameExact},
		{name: "exact", want: compare.NameExact},
		{name: "FLOAT", want: compare.NameFloat},
		{name: "unordered", want: compare.NameUnordered},
	}
	for _, tc := range cases {
		c, err := compare.Lookup(tc.name)
		if err != nil {
			t.Fatalf("lookup %q: %v", tc.name, err)
		}
		if c.Name() != tc.want {
			t.Fatalf("lookup %q: expected %s, got %s", tc.name, tc.want, c.Name())
		}
	}

	if _, err := compare.Lookup("fuzzy"); !appErr.Is(err, appErr.ComparatorNotFound) {
		t.Fatalf("expected ComparatorNotFound, got %v", err)
	}
}
