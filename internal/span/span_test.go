package span

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpan_Basics(t *testing.T) {
	s := New(6, 11)

	assert.Equal(t, 5, s.Len())
	assert.False(t, s.Empty())
	assert.True(t, New(3, 3).Empty())
	assert.Equal(t, "[6, 11)", s.String())
}

func TestSpan_Within(t *testing.T) {
	sentence := New(0, 11)

	assert.True(t, New(0, 4).Within(sentence))
	assert.True(t, New(5, 11).Within(sentence))
	assert.False(t, New(5, 12).Within(sentence), "end is exclusive")
	assert.False(t, New(12, 15).Within(sentence))
}

func TestSpan_ValidAndSlice(t *testing.T) {
	text := "Cats sleep. Dogs run."

	assert.True(t, New(12, 21).Valid(len(text)))
	assert.False(t, New(12, 22).Valid(len(text)))
	assert.False(t, New(4, 4).Valid(len(text)))

	assert.Equal(t, "Dogs run.", New(12, 21).Slice(text))
	assert.Equal(t, "run.", New(17, 99).Slice(text))
	assert.Empty(t, New(30, 40).Slice(text))
}
