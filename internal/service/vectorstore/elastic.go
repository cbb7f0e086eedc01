package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/ashwinyue/rag-chat/internal/config"
	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/cloudwego/eino-ext/components/indexer/es8"
	es8retriever "github.com/cloudwego/eino-ext/components/retriever/es8"
	"github.com/cloudwego/eino-ext/components/retriever/es8/search_mode"
	"github.com/cloudwego/eino/schema"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	estypes "github.com/elastic/go-elasticsearch/v8/typedapi/types"
)

const (
	fieldContent = "content"
	fieldVector  = "content_vector"
)

// ESCollection 基于 Elasticsearch dense_vector 的集合
// 写入使用 eino es8 Indexer，检索使用 eino es8 Retriever
type ESCollection struct {
	client *elasticsearch.Client
	index  string

	mu      sync.Mutex
	ensured bool
}

// NewESClient 创建 ES8 客户端
func NewESClient(cfg *config.ElasticConfig) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Host},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
}

// NewESCollection 创建 ES 集合
func NewESCollection(client *elasticsearch.Client, index string) *ESCollection {
	return &ESCollection{client: client, index: index}
}

// Upsert 写入文档，文档 ID 作为 ES _id
func (c *ESCollection) Upsert(ctx context.Context, emb *Embedder, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := c.ensureIndex(ctx, emb.Dimensions); err != nil {
		return err
	}

	indexer, err := es8.NewIndexer(ctx, &es8.IndexerConfig{
		Client:           c.client,
		Index:            c.index,
		BatchSize:        10,
		Embedding:        emb,
		DocumentToFields: documentToFields,
	})
	if err != nil {
		return fmt.Errorf("failed to create ES8 indexer: %w", err)
	}

	if _, err := indexer.Store(ctx, docs); err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}

	return c.refresh(ctx)
}

// DeleteByDocument 按 doc_id 删除
func (c *ESCollection) DeleteByDocument(ctx context.Context, docID string) error {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"term": map[string]any{MetaDocID: docID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.client.DeleteByQuery(
		[]string{c.index},
		bytes.NewReader(body),
		c.client.DeleteByQuery.WithContext(ctx),
		c.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("delete by query failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("%w: delete by query failed: %s", types.ErrVectorIndex, res.String())
	}
	return nil
}

// Query 余弦相似度检索，ES 返回 cos+1，距离为 2-score
func (c *ESCollection) Query(ctx context.Context, emb *Embedder, query string, k int) ([]Match, error) {
	r, err := es8retriever.NewRetriever(ctx, &es8retriever.RetrieverConfig{
		Client:       c.client,
		Index:        c.index,
		TopK:         k,
		SearchMode:   search_mode.SearchModeDenseVectorSimilarity(search_mode.DenseVectorSimilarityTypeCosineSimilarity, fieldVector),
		ResultParser: parseHit,
		Embedding:    emb,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES8 retriever: %w", err)
	}

	docs, err := r.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve failed: %w", err)
	}

	matches := make([]Match, 0, len(docs))
	for _, d := range docs {
		distance := 2 - d.Score()
		if distance < 0 {
			distance = 0
		}
		matches = append(matches, Match{Doc: d, Distance: distance})
	}
	return matches, nil
}

// Count 条目总数，索引不存在视为 0
func (c *ESCollection) Count(ctx context.Context) (int64, error) {
	res, err := c.client.Count(
		c.client.Count.WithContext(ctx),
		c.client.Count.WithIndex(c.index),
	)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, fmt.Errorf("%w: count failed: %s", types.ErrVectorIndex, res.String())
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: failed to decode count: %w", types.ErrVectorIndex, err)
	}
	return out.Count, nil
}

func (c *ESCollection) refresh(ctx context.Context) error {
	res, err := c.client.Indices.Refresh(
		c.client.Indices.Refresh.WithContext(ctx),
		c.client.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

// ensureIndex 确保索引存在（eino Indexer 不负责建索引）
func (c *ESCollection) ensureIndex(ctx context.Context, dimensions int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ensured {
		return nil
	}

	res, err := c.client.Indices.Exists([]string{c.index}, c.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		c.ensured = true
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				fieldContent: map[string]any{"type": "text"},
				fieldVector: map[string]any{
					"type":       "dense_vector",
					"dims":       dimensions,
					"index":      true,
					"similarity": "cosine",
				},
				MetaDocID:      map[string]any{"type": "keyword"},
				MetaFilename:   map[string]any{"type": "keyword"},
				MetaChunkIndex: map[string]any{"type": "integer"},
			},
		},
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	req := esapi.IndicesCreateRequest{Index: c.index, Body: bytes.NewReader(body)}
	res, err = req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	// 并发创建时可能已存在
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("failed to create index: %s", res.String())
	}

	log.Printf("Index %s ready with %d dimensions", c.index, dimensions)
	c.ensured = true
	return nil
}

// documentToFields 块文档映射为 ES 字段，content 同时写入向量
func documentToFields(_ context.Context, doc *schema.Document) (map[string]es8.FieldValue, error) {
	fields := map[string]es8.FieldValue{
		fieldContent: {Value: doc.Content, EmbedKey: fieldVector},
	}
	for _, key := range []string{MetaDocID, MetaFilename, MetaChunkIndex} {
		if v, ok := doc.MetaData[key]; ok {
			fields[key] = es8.FieldValue{Value: v}
		}
	}
	return fields, nil
}

// parseHit 解析检索命中
func parseHit(_ context.Context, hit estypes.Hit) (*schema.Document, error) {
	var src struct {
		Content    string `json:"content"`
		DocID      string `json:"doc_id"`
		Filename   string `json:"filename"`
		ChunkIndex int    `json:"chunk_index"`
	}
	if len(hit.Source_) > 0 {
		if err := json.Unmarshal(hit.Source_, &src); err != nil {
			return nil, fmt.Errorf("failed to decode hit source: %w", err)
		}
	}

	doc := &schema.Document{
		Content: src.Content,
		MetaData: map[string]any{
			MetaDocID:      src.DocID,
			MetaFilename:   src.Filename,
			MetaChunkIndex: src.ChunkIndex,
		},
	}
	if hit.Id_ != nil {
		doc.ID = *hit.Id_
	}
	if hit.Score_ != nil {
		doc.WithScore(float64(*hit.Score_))
	}
	return doc, nil
}
