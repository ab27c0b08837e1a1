package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

func TestNewRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name    string
		maxSize int
		overlap int
	}{
		{"zero max size", 0, 0},
		{"negative overlap", 100, -1},
		{"overlap equals max size", 100, 100},
		{"overlap exceeds max size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.maxSize, tc.overlap)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrChunking))
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	c, err := New(1000, 100)
	require.NoError(t, err)

	_, err = c.Split("doc-1", "   \n\t ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrChunking))
}

func TestSplitHardCuts(t *testing.T) {
	// 2500 runes with no paragraph or sentence boundaries forces hard cuts.
	c, err := New(1000, 100)
	require.NoError(t, err)

	text := strings.Repeat("a", 2500)
	chunks, err := c.Split("doc-1", text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.Equal(t, "doc-1", ch.DocumentID)
	}
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 1000, chunks[0].End)
	assert.Equal(t, 900, chunks[1].Start)
	assert.Equal(t, 1900, chunks[1].End)
	assert.Equal(t, 1800, chunks[2].Start)
	assert.Equal(t, 2500, chunks[2].End)
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)

	text := strings.Repeat("x", 80) + "\n\n" + strings.Repeat("y", 80)
	chunks, err := c.Split("doc-1", text)
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2)

	// First cut lands just after the blank line, not at the hard limit.
	assert.Equal(t, 82, chunks[0].End)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"))
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)

	text := strings.Repeat("x", 70) + ". " + strings.Repeat("y", 80)
	chunks, err := c.Split("doc-1", text)
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2)

	assert.Equal(t, 71, chunks[0].End)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "."))
}

func TestSplitDeterministic(t *testing.T) {
	c, err := New(200, 40)
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	first, err := c.Split("doc-1", text)
	require.NoError(t, err)
	second, err := c.Split("doc-1", text)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSplitReconstructsSource(t *testing.T) {
	// Trimming each overlap at its midpoint must rebuild the source exactly.
	c, err := New(120, 30)
	require.NoError(t, err)

	text := strings.Repeat("Some sentences here. Another one follows! More text? ", 40)
	chunks, err := c.Split("doc-1", text)
	require.NoError(t, err)

	runes := []rune(text)
	var sb strings.Builder
	for i, ch := range chunks {
		start, end := ch.Start, ch.End
		if i > 0 {
			start = (chunks[i-1].End + ch.Start) / 2
		}
		if i < len(chunks)-1 {
			end = (ch.End + chunks[i+1].Start) / 2
		}
		sb.WriteString(string(runes[start:end]))
	}
	assert.Equal(t, text, sb.String())

	// Ordinals are contiguous and offsets cover the whole source.
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(runes), chunks[len(chunks)-1].End)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].Ordinal+1, chunks[i].Ordinal)
		assert.Equal(t, chunks[i-1].End-30, chunks[i].Start)
	}
}
