// Package vectorstore 文档块的向量索引与相似度检索
package vectorstore

import (
	"context"
	"errors"
	"log"

	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/cloudwego/eino/schema"
)

// DefaultTopK 默认检索条数
const DefaultTopK = 6

const (
	msgIndexFailed  = "Embedding/indexing failed. Ensure Ollama is running and the embedding model is available."
	msgSearchFailed = "Vector search failed. Confirm embedding service and vector store are healthy."
)

// EmbedderSource 提供已解析的向量化器
type EmbedderSource interface {
	Resolve(ctx context.Context) (*Embedder, error)
}

// Index 向量索引
type Index struct {
	collection Collection
	embedders  EmbedderSource
}

// NewIndex 创建向量索引
func NewIndex(collection Collection, embedders EmbedderSource) *Index {
	return &Index{collection: collection, embedders: embedders}
}

// AddChunks 写入文档块，ID 为 {docID}:{index}
func (x *Index) AddChunks(ctx context.Context, docID, filename string, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}

	emb, err := x.embedders.Resolve(ctx)
	if err != nil {
		return types.Wrap(types.ErrVectorIndex, msgIndexFailed, err)
	}

	docs := make([]*schema.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = newChunkDocument(docID, filename, i, chunk)
	}

	if err := x.collection.Upsert(ctx, emb, docs); err != nil {
		return types.Wrap(types.ErrVectorIndex, msgIndexFailed, err)
	}
	return nil
}

// DeleteDocument 删除文档的全部块，失败只记录日志
func (x *Index) DeleteDocument(ctx context.Context, docID string) {
	if err := x.collection.DeleteByDocument(ctx, docID); err != nil {
		log.Printf("Warning: failed to delete index entries for %s: %v", docID, err)
	}
}

// Retrieve 检索最相似的 k 个块，score = 1/(1+distance)
// 索引为空时不做任何向量化调用
func (x *Index) Retrieve(ctx context.Context, query string, k int) ([]types.Hit, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if x.IsEmpty(ctx) {
		return []types.Hit{}, nil
	}

	emb, err := x.embedders.Resolve(ctx)
	if err != nil {
		return nil, types.Wrap(types.ErrVectorIndex, msgSearchFailed, err)
	}

	matches, err := x.collection.Query(ctx, emb, query, k)
	if err != nil {
		return nil, types.Wrap(types.ErrVectorIndex, msgSearchFailed, err)
	}

	hits := make([]types.Hit, 0, len(matches))
	for _, m := range matches {
		filename := metaString(m.Doc, MetaFilename)
		if filename == "" {
			filename = "unknown"
		}
		hits = append(hits, types.Hit{
			Text:     m.Doc.Content,
			Filename: filename,
			DocID:    metaString(m.Doc, MetaDocID),
			Score:    1 / (1 + m.Distance),
		})
	}
	return hits, nil
}

// IsEmpty 索引是否为空
// 集合返回索引类错误时视为非空（交给检索报错），其他错误视为空
func (x *Index) IsEmpty(ctx context.Context) bool {
	n, err := x.collection.Count(ctx)
	if err != nil {
		if errors.Is(err, types.ErrVectorIndex) {
			return false
		}
		log.Printf("Warning: vector count failed: %v", err)
		return true
	}
	return n == 0
}
