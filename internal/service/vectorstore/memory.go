package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/schema"
)

type memoryEntry struct {
	doc    *schema.Document
	vector []float64
}

// MemoryCollection 进程内向量集合，重启后丢失，用于开发和测试
type MemoryCollection struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryCollection 创建内存集合
func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{entries: make(map[string]memoryEntry)}
}

// Upsert 向量化并写入
func (m *MemoryCollection) Upsert(ctx context.Context, emb *Embedder, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := emb.EmbedStrings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed strings failed: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("vector count mismatch: expected %d, got %d", len(docs), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range docs {
		m.entries[d.ID] = memoryEntry{doc: d, vector: vectors[i]}
	}
	return nil
}

// DeleteByDocument 删除文档的全部块
func (m *MemoryCollection) DeleteByDocument(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if metaString(e.doc, MetaDocID) == docID {
			delete(m.entries, id)
		}
	}
	return nil
}

// Query 暴力计算余弦距离
func (m *MemoryCollection) Query(ctx context.Context, emb *Embedder, query string, k int) ([]Match, error) {
	vectors, err := emb.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query returned no vector")
	}
	qv := vectors[0]

	m.mu.RLock()
	matches := make([]Match, 0, len(m.entries))
	for _, e := range m.entries {
		matches = append(matches, Match{Doc: e.doc, Distance: cosineDistance(qv, e.vector)})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance == matches[j].Distance {
			return matches[i].Doc.ID < matches[j].Doc.ID
		}
		return matches[i].Distance < matches[j].Distance
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count 条目总数
func (m *MemoryCollection) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

// IDs 当前全部条目 ID，按字典序
func (m *MemoryCollection) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
