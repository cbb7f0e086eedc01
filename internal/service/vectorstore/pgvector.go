package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// undefinedTable Postgres SQLSTATE
const undefinedTable = "42P01"

// PGCollection 基于 pgvector 的集合
// 表在第一次写入时按向量维度创建
type PGCollection struct {
	pool  *pgxpool.Pool
	table string

	mu      sync.Mutex
	ensured bool
}

// NewPGCollection 连接数据库并创建集合
func NewPGCollection(ctx context.Context, connString, table string) (*PGCollection, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PGCollection{pool: pool, table: table}, nil
}

// Close 关闭连接池
func (c *PGCollection) Close() {
	c.pool.Close()
}

func (c *PGCollection) tableName() string {
	return pgx.Identifier{c.table}.Sanitize()
}

func (c *PGCollection) ensureTable(ctx context.Context, dimensions int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ensured {
		return nil
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			doc_id      TEXT NOT NULL,
			filename    TEXT NOT NULL DEFAULT '',
			chunk_index INTEGER NOT NULL,
			content     TEXT NOT NULL,
			embedding   vector(%d) NOT NULL
		)`, c.tableName(), dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (doc_id)`,
			pgx.Identifier{c.table + "_doc_id_idx"}.Sanitize(), c.tableName()),
	}
	for _, stmt := range stmts {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare vector table: %w", err)
		}
	}

	c.ensured = true
	return nil
}

// Upsert 批量写入，ID 冲突时覆盖
func (c *PGCollection) Upsert(ctx context.Context, emb *Embedder, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := c.ensureTable(ctx, emb.Dimensions); err != nil {
		return err
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

	query := fmt.Sprintf(`INSERT INTO %s (id, doc_id, filename, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			filename = EXCLUDED.filename,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`, c.tableName())

	batch := &pgx.Batch{}
	for i, d := range docs {
		index, _ := d.MetaData[MetaChunkIndex].(int)
		batch.Queue(query,
			d.ID, metaString(d, MetaDocID), metaString(d, MetaFilename), index, d.Content,
			pgvector.NewVector(toFloat32(vectors[i])),
		)
	}

	br := c.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert chunk %d: %w", i, err)
		}
	}
	return nil
}

// DeleteByDocument 按 doc_id 删除
func (c *PGCollection) DeleteByDocument(ctx context.Context, docID string) error {
	_, err := c.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, c.tableName()), docID)
	if err != nil && !isUndefinedTable(err) {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Query 使用 <=> 余弦距离排序
func (c *PGCollection) Query(ctx context.Context, emb *Embedder, query string, k int) ([]Match, error) {
	vectors, err := emb.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query returned no vector")
	}

	rows, err := c.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, doc_id, filename, chunk_index, content, embedding <=> $1 AS distance
		 FROM %s
		 ORDER BY distance
		 LIMIT $2`, c.tableName()),
		pgvector.NewVector(toFloat32(vectors[0])), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			id, docID, filename, content string
			index                        int
			distance                     float64
		)
		if err := rows.Scan(&id, &docID, &filename, &index, &content, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		matches = append(matches, Match{
			Doc:      newChunkDocument(docID, filename, index, content),
			Distance: distance,
		})
	}
	return matches, rows.Err()
}

// Count 条目总数，表不存在视为 0
func (c *PGCollection) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.tableName())).Scan(&n)
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}
