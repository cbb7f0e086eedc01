package service

import (
	"context"
	"fmt"
	"log"

	"github.com/ashwinyue/rag-chat/internal/config"
	"github.com/ashwinyue/rag-chat/internal/repository"
	"github.com/ashwinyue/rag-chat/internal/service/callback"
	"github.com/ashwinyue/rag-chat/internal/service/chat"
	"github.com/ashwinyue/rag-chat/internal/service/document"
	"github.com/ashwinyue/rag-chat/internal/service/file"
	"github.com/ashwinyue/rag-chat/internal/service/llm"
	"github.com/ashwinyue/rag-chat/internal/service/rag"
	"github.com/ashwinyue/rag-chat/internal/service/secret"
	"github.com/ashwinyue/rag-chat/internal/service/session"
	"github.com/ashwinyue/rag-chat/internal/service/settings"
	"github.com/ashwinyue/rag-chat/internal/service/vectorstore"
	"github.com/redis/go-redis/v9"
)

// Services 服务集合
type Services struct {
	// 业务服务
	Documents *document.Service
	Settings  *settings.Service
	RAG       *rag.Service
	Chat      *chat.Service

	// 配置
	Config  *config.Config
	History *session.Store

	// 基础组件
	Index    *vectorstore.Index
	Storage  file.Storage
	Registry *llm.Registry

	closers []func()
}

// NewServices 创建所有服务
// 使用简单的 newXxx() 函数直接初始化 eino 组件
func NewServices(repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client) (*Services, error) {
	ctx := context.Background()
	s := &Services{Config: cfg}

	// Eino 组件回调日志
	callback.SetupGlobalCallbacks(cfg.App.Debug)

	// 设置与 API Key
	store, err := newSettingsStore(repo, cfg)
	if err != nil {
		return nil, err
	}
	s.Settings = settings.NewService(store)

	// 向量索引
	collection, closeFn, err := newCollection(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeFn != nil {
		s.closers = append(s.closers, closeFn)
	}
	resolver := vectorstore.NewResolver(
		vectorstore.DefaultCandidates(&cfg.Ollama, &cfg.Embedding, s.Settings),
		cfg.Embedding.ProbeTimeoutDuration(),
	)
	s.Index = vectorstore.NewIndex(collection, resolver)

	// 原始文件存储
	s.Storage, err = file.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	log.Printf("File storage initialized with type: %s", s.Storage.Type())

	parser, chunker, err := newKnowledgeComponents(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Documents = document.NewService(repo.Document, parser, chunker, s.Storage, s.Index, cfg.Upload.MaxSizeMB)

	// 对话
	s.Registry = llm.NewRegistry()
	s.RAG = rag.NewService(s.Index, s.Settings, s.Registry)
	s.History = session.NewStore(redisClient)
	s.Chat = chat.NewService(repo.Chat, s.History)

	return s, nil
}

// Close 释放向量库连接等资源
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// newSettingsStore 按配置选择数据库或 JSON 文件持久化
func newSettingsStore(repo *repository.Repositories, cfg *config.Config) (settings.Store, error) {
	cipher := secret.NewCipher(cfg.Settings.KeyFile)
	defaults := settings.DefaultRecord(cfg.Ollama.BaseURL)

	switch cfg.Settings.Backend {
	case "", "database":
		return settings.NewDBStore(repo.Settings, cipher, defaults), nil
	case "file":
		log.Printf("Settings stored in file: %s", cfg.Settings.FilePath)
		return settings.NewFileStore(cfg.Settings.FilePath, cipher, defaults), nil
	default:
		return nil, fmt.Errorf("unsupported settings backend: %s", cfg.Settings.Backend)
	}
}
