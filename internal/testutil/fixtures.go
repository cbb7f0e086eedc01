package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/cloudwego/eino/components/embedding"
)

// 示例文档
const (
	RefundPolicy = "Refunds are issued within 14 days of purchase. " +
		"Items must be returned unused and in their original packaging."
	WarrantyPolicy = "The warranty covers manufacturing defects for two years. " +
		"Accidental damage is not covered by the warranty."
	ShippingPolicy = "Standard shipping takes five business days. " +
		"Express shipping is available for an additional fee."
)

// CanceledContext 返回已取消的 context
func CanceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// FakeEmbedder 确定性的词袋向量，相同词汇的文本余弦相似度更高
type FakeEmbedder struct {
	Dims int
	Err  error

	mu    sync.Mutex
	calls int
	texts []string
}

// NewFakeEmbedder 创建 FakeEmbedder
func NewFakeEmbedder() *FakeEmbedder {
	return &FakeEmbedder{Dims: 64}
}

// EmbedStrings 实现 embedding.Embedder
func (e *FakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.mu.Lock()
	e.calls++
	e.texts = append(e.texts, texts...)
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

// Calls EmbedStrings 被调用的次数
func (e *FakeEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Texts 所有被向量化过的文本
func (e *FakeEmbedder) Texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

func (e *FakeEmbedder) vector(text string) []float64 {
	dims := e.Dims
	if dims <= 0 {
		dims = 64
	}
	vec := make([]float64, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32()%uint32(dims))]++
	}

	// 空文本给一个固定方向，避免零向量
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
