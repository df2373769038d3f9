// Package span defines the half-open byte interval used for sentence and
// token locations in document text.
package span

import "fmt"

// Span is a half-open interval [Start, End) of UTF-8 byte offsets.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// New returns the span [start, end).
func New(start, end int) Span {
	return Span{Start: start, End: end}
}

// Len returns the number of bytes covered.
func (s Span) Len() int {
	return s.End - s.Start
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool {
	return s.End <= s.Start
}

// Within reports whether s lies entirely inside outer.
func (s Span) Within(outer Span) bool {
	return outer.Start <= s.Start && s.End <= outer.End
}

// Valid reports whether s is a non-empty span inside a text of length n.
func (s Span) Valid(n int) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= n
}

// Slice returns the text covered by s, clamped to text bounds.
func (s Span) Slice(text string) string {
	start, end := s.Start, s.End
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start >= end {
		return ""
	}
	return text[start:end]
}

func (s Span) String() string {
	return fmt.Sprintf("[%d, %d)", s.Start, s.End)
}
