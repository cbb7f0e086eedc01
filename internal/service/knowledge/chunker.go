package knowledge

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultChunkSize    = 900
	DefaultChunkOverlap = 150
)

// Chunker 将文本切分为检索块
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]string, error)
}

// TextChunker 基于 eino recursive splitter 的分块器
// 先把所有空白折叠为单个空格，再按字符数切分
type TextChunker struct {
	splitter document.Transformer
}

// NewTextChunker 创建分块器，size/overlap 非正数时使用默认值
func NewTextChunker(ctx context.Context, size, overlap int) (*TextChunker, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap <= 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}

	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   size,
		OverlapSize: overlap,
		Separators:  []string{"\n\n", "\n", ". ", " ", ""},
		LenFunc:     utf8.RuneCountInString,
		KeepType:    recursive.KeepTypeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}

	return &TextChunker{splitter: splitter}, nil
}

// Chunk 切分文本，空白输入返回空切片
func (c *TextChunker) Chunk(ctx context.Context, text string) ([]string, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return []string{}, nil
	}

	docs, err := c.splitter.Transform(ctx, []*schema.Document{{Content: normalized}})
	if err != nil {
		return nil, fmt.Errorf("splitter failed: %w", err)
	}

	chunks := make([]string, 0, len(docs))
	for _, d := range docs {
		if s := strings.TrimSpace(d.Content); s != "" {
			chunks = append(chunks, s)
		}
	}
	return chunks, nil
}

// Normalize 折叠连续空白并去除首尾空白
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
