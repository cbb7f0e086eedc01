package service

import (
	"context"
	"fmt"
	"log"

	"github.com/ashwinyue/rag-chat/internal/config"
	"github.com/ashwinyue/rag-chat/internal/service/knowledge"
	"github.com/ashwinyue/rag-chat/internal/service/vectorstore"
)

// newCollection 按 vector.backend 创建向量集合
// 返回的 close 函数可能为 nil
func newCollection(ctx context.Context, cfg *config.Config) (vectorstore.Collection, func(), error) {
	name := cfg.Vector.Collection
	if name == "" {
		name = "documents"
	}

	switch cfg.Vector.Backend {
	case "", "elasticsearch":
		client, err := vectorstore.NewESClient(&cfg.Elastic)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create ES client: %w", err)
		}
		index := name
		if cfg.Elastic.IndexPrefix != "" {
			index = cfg.Elastic.IndexPrefix + "_" + name
		}
		log.Printf("Vector store: elasticsearch index %s", index)
		return vectorstore.NewESCollection(client, index), nil, nil

	case "pgvector":
		dsn := cfg.Vector.PgDSN
		if dsn == "" {
			dsn = cfg.Database.GetURL()
		}
		coll, err := vectorstore.NewPGCollection(ctx, dsn, name)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgvector collection: %w", err)
		}
		log.Printf("Vector store: pgvector table %s", name)
		return coll, coll.Close, nil

	case "memory":
		log.Printf("Warning: using in-memory vector store, index is lost on restart")
		return vectorstore.NewMemoryCollection(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
}

// newKnowledgeComponents 创建 eino 解析器与分块器
func newKnowledgeComponents(ctx context.Context) (*knowledge.DocumentParser, *knowledge.TextChunker, error) {
	parser, err := knowledge.NewDocumentParser(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create document parser: %w", err)
	}
	chunker, err := knowledge.NewTextChunker(ctx, knowledge.DefaultChunkSize, knowledge.DefaultChunkOverlap)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chunker: %w", err)
	}
	return parser, chunker, nil
}
