package knowledge

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== textParser ==========

func TestTextParser_Parse(t *testing.T) {
	p := &textParser{}

	tests := []struct {
		name        string
		content     string
		wantDocs    int
		wantContent string
	}{
		{"simple text", "Hello, world!", 1, "Hello, world!"},
		{"multiline text", "Line 1\nLine 2", 1, "Line 1\nLine 2"},
		{"empty content", "", 0, ""},
		{"unicode content", "Hello 世界 🌍", 1, "Hello 世界 🌍"},
		{"invalid utf8 dropped", "ab\xffcd", 1, "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := p.Parse(context.Background(), strings.NewReader(tt.content))
			require.NoError(t, err)
			require.Len(t, docs, tt.wantDocs)
			if tt.wantDocs > 0 {
				assert.Equal(t, tt.wantContent, docs[0].Content)
				assert.NotNil(t, docs[0].MetaData)
			}
		})
	}
}

// ========== DocumentParser ==========

func TestDocumentParser_Supported(t *testing.T) {
	p, err := NewDocumentParser(context.Background())
	require.NoError(t, err)

	for _, ext := range SupportedExtensions {
		assert.True(t, p.Supported(ext), ext)
	}
	assert.True(t, p.Supported(".PDF"))
	assert.False(t, p.Supported(".exe"))
	assert.False(t, p.Supported(""))
}

func TestDocumentParser_ExtractText(t *testing.T) {
	p, err := NewDocumentParser(context.Background())
	require.NoError(t, err)

	text, err := p.Extract(context.Background(), ".md", []byte("# Title\n\nBody text."))
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody text.", text)

	text, err = p.Extract(context.Background(), ".txt", []byte(""))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestDocumentParser_ExtractHTML(t *testing.T) {
	p, err := NewDocumentParser(context.Background())
	require.NoError(t, err)

	page := `<html><head><title>T</title></head><body><p>Refund policy applies for 30 days.</p></body></html>`
	text, err := p.Extract(context.Background(), ".html", []byte(page))
	require.NoError(t, err)
	assert.Contains(t, text, "Refund policy applies for 30 days.")
}

func TestDocumentParser_ExtractErrors(t *testing.T) {
	p, err := NewDocumentParser(context.Background())
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), ".exe", []byte("MZ"))
	assert.ErrorIs(t, err, types.ErrParse)

	_, err = p.Extract(context.Background(), ".pdf", []byte("definitely not a pdf"))
	assert.ErrorIs(t, err, types.ErrParse)
}

// ========== TextChunker ==========

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  a\n\n b\t\tc \r\n"))
	assert.Equal(t, "", Normalize(" \n\t "))
}

func TestTextChunker_Empty(t *testing.T) {
	c, err := NewTextChunker(context.Background(), 0, 0)
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), "   \n\n  ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestTextChunker_ShortText(t *testing.T) {
	c, err := NewTextChunker(context.Background(), 0, 0)
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), "Refunds are issued\n\nwithin 14 days.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Refunds are issued within 14 days."}, chunks)
}

func TestTextChunker_LongText(t *testing.T) {
	c, err := NewTextChunker(context.Background(), DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	sentence := "The warranty covers manufacturing defects for two years from purchase. "
	text := strings.Repeat(sentence, 60)
	normalized := Normalize(text)

	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 3)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), DefaultChunkSize)
		assert.NotEmpty(t, chunk)
		assert.Contains(t, normalized, chunk)
	}

	again, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, chunks, again)
}

func TestTextChunker_Overlap(t *testing.T) {
	c, err := NewTextChunker(context.Background(), DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	words := make([]string, 400)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	chunks, err := c.Chunk(context.Background(), strings.Join(words, " "))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 3)

	for i := 1; i < len(chunks); i++ {
		prev, next := chunks[i-1], chunks[i]
		tail := prev
		if n := utf8.RuneCountInString(prev); n > DefaultChunkOverlap {
			tail = string([]rune(prev)[n-DefaultChunkOverlap:])
		}

		first := strings.Fields(next)[0]
		idx := strings.Index(tail, first)
		require.GreaterOrEqual(t, idx, 0, "chunk %d starts with %q outside the tail of chunk %d", i, first, i-1)
		assert.True(t, strings.HasPrefix(next, tail[idx:]), "chunk %d does not continue from chunk %d", i, i-1)
	}
}

func TestTextChunker_DefaultsOnNonPositive(t *testing.T) {
	text := strings.Repeat("Returns need the original receipt and packaging. ", 80)

	fallback, err := NewTextChunker(context.Background(), 0, 0)
	require.NoError(t, err)
	explicit, err := NewTextChunker(context.Background(), DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	got, err := fallback.Chunk(context.Background(), text)
	require.NoError(t, err)
	want, err := explicit.Chunk(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTextChunker_AtomicToken(t *testing.T) {
	c, err := NewTextChunker(context.Background(), DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	token := strings.Repeat("0123456789", 200)
	chunks, err := c.Chunk(context.Background(), token)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 3)

	total := 0
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), DefaultChunkSize)
		assert.Contains(t, token, chunk)
		total += utf8.RuneCountInString(chunk)
	}
	assert.True(t, strings.HasPrefix(token, chunks[0]))
	assert.True(t, strings.HasSuffix(token, chunks[len(chunks)-1]))
	assert.GreaterOrEqual(t, total, len(token))
}
