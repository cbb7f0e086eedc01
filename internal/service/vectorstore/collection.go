package vectorstore

import (
	"context"
	"fmt"
	"math"

	"github.com/cloudwego/eino/schema"
)

// 元数据键
const (
	MetaDocID      = "doc_id"
	MetaFilename   = "filename"
	MetaChunkIndex = "chunk_index"
)

// Collection 向量集合，负责持久化与相似度检索
type Collection interface {
	// Upsert 向量化并写入文档，ID 相同则覆盖
	Upsert(ctx context.Context, emb *Embedder, docs []*schema.Document) error
	// DeleteByDocument 删除 doc_id 元数据等于 docID 的全部条目
	DeleteByDocument(ctx context.Context, docID string) error
	// Query 返回余弦距离最小的 k 条
	Query(ctx context.Context, emb *Embedder, query string, k int) ([]Match, error)
	// Count 条目总数
	Count(ctx context.Context) (int64, error)
}

// Match 检索命中，Distance 为余弦距离
type Match struct {
	Doc      *schema.Document
	Distance float64
}

// ChunkID 块 ID 格式 {docID}:{index}
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s:%d", docID, index)
}

// newChunkDocument 构造带元数据的块文档
func newChunkDocument(docID, filename string, index int, text string) *schema.Document {
	return &schema.Document{
		ID:      ChunkID(docID, index),
		Content: text,
		MetaData: map[string]any{
			MetaDocID:      docID,
			MetaFilename:   filename,
			MetaChunkIndex: index,
		},
	}
}

func metaString(doc *schema.Document, key string) string {
	if doc == nil || doc.MetaData == nil {
		return ""
	}
	switch v := doc.MetaData[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// cosineDistance 1 - cos(a, b)，任一为零向量时返回 1
func cosineDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
