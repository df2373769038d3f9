// Package sentence splits document text into ordered sentence spans.
package sentence

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MerijnSC/RAG-project/internal/span"
)

// Splitter yields ordered, non-overlapping, non-empty sentence spans.
type Splitter interface {
	Split(text string) []span.Span
}

// RuleSplitter ends a sentence at terminal punctuation followed by
// whitespace or end of text (full-width terminals need no space), at blank lines, and around markdown headings.
// Leading and trailing whitespace is excluded from every span, and trailing
// text without terminal punctuation forms a last sentence.
type RuleSplitter struct{}

// NewRuleSplitter returns a RuleSplitter.
func NewRuleSplitter() *RuleSplitter {
	return &RuleSplitter{}
}

// Split implements Splitter.
func (s *RuleSplitter) Split(text string) []span.Span {
	var out []span.Span
	emit := func(a, b int) {
		if sp, ok := trim(text, a, b); ok {
			out = append(out, sp)
		}
	}

	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])

		if isTerminal(r) {
			j := i + size
			for j < len(text) {
				next, n := utf8.DecodeRuneInString(text[j:])
				if !isTerminal(next) && !isCloser(next) {
					break
				}
				j += n
			}
			if j == len(text) || startsWithSpace(text[j:]) || isWide(r) {
				emit(start, j)
				start = j
			}
			i = j
			continue
		}

		if r == '\n' {
			rest := text[i+1:]
			if isHeading(text[start:i]) || blankLineAhead(rest) || isHeading(firstLine(rest)) {
				emit(start, i)
				start = i + 1
			}
		}
		i += size
	}
	emit(start, len(text))
	return out
}

// isTerminal reports sentence-ending punctuation, including full-width forms.
func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

// isWide reports full-width terminals, which end a sentence even without
// a following space.
func isWide(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

// isCloser reports characters that may trail terminal punctuation.
func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»', '」', '』':
		return true
	}
	return false
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}

// blankLineAhead reports whether s starts with a whitespace-only line end.
func blankLineAhead(s string) bool {
	for _, r := range s {
		if r == '\n' {
			return true
		}
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// isHeading reports a markdown ATX heading line.
func isHeading(line string) bool {
	return strings.HasPrefix(strings.TrimLeftFunc(line, unicode.IsSpace), "#")
}

// trim narrows [a, b) to exclude surrounding whitespace.
func trim(text string, a, b int) (span.Span, bool) {
	for a < b {
		r, n := utf8.DecodeRuneInString(text[a:b])
		if !unicode.IsSpace(r) {
			break
		}
		a += n
	}
	for b > a {
		r, n := utf8.DecodeLastRuneInString(text[a:b])
		if !unicode.IsSpace(r) {
			break
		}
		b -= n
	}
	return span.New(a, b), a < b
}

var _ Splitter = (*RuleSplitter)(nil)
