package vectorstore

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ashwinyue/rag-chat/internal/config"
	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/cloudwego/eino-ext/components/embedding/dashscope"
	"github.com/cloudwego/eino-ext/components/embedding/ollama"
	openaiemb "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

// ProbeText 健康探测使用的固定文本
const ProbeText = "healthcheck"

// GeminiOpenAIBaseURL Gemini 的 OpenAI 兼容接口
const GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// Embedder 已通过探测的向量化器
type Embedder struct {
	embedding.Embedder
	Name       string
	Dimensions int
}

// KeySource 读取已保存的 Provider API Key，未保存时返回空串
type KeySource interface {
	APIKey(ctx context.Context, provider string) (string, error)
}

// Candidate 候选向量化器
// Build 返回 nil, nil 表示该候选未配置，直接跳过
type Candidate struct {
	Name  string
	Build func(ctx context.Context) (embedding.Embedder, error)
}

// Resolver 按优先级探测并缓存第一个可用的向量化器
type Resolver struct {
	candidates   []Candidate
	probeTimeout time.Duration

	mu     sync.Mutex
	cached *Embedder
}

// NewResolver 创建 Resolver
func NewResolver(candidates []Candidate, probeTimeout time.Duration) *Resolver {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Resolver{candidates: candidates, probeTimeout: probeTimeout}
}

// Resolve 返回缓存的向量化器，首次调用时依次探测候选
func (r *Resolver) Resolve(ctx context.Context) (*Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return r.cached, nil
	}

	for _, c := range r.candidates {
		emb, err := c.Build(ctx)
		if err != nil {
			log.Printf("Warning: failed to create %s embedder: %v", c.Name, err)
			continue
		}
		if emb == nil {
			continue
		}

		dims, err := r.probe(ctx, emb)
		if err != nil {
			log.Printf("Warning: %s embedder probe failed: %v", c.Name, err)
			continue
		}

		log.Printf("Using %s embedder (%d dimensions)", c.Name, dims)
		r.cached = &Embedder{Embedder: emb, Name: c.Name, Dimensions: dims}
		return r.cached, nil
	}

	return nil, types.Errorf(types.ErrNoEmbeddingProvider,
		"No embedding provider available. Start Ollama or configure Gemini/OpenAI API keys for embeddings.")
}

func (r *Resolver) probe(ctx context.Context, emb embedding.Embedder) (int, error) {
	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	vectors, err := emb.EmbedStrings(probeCtx, []string{ProbeText})
	if err != nil {
		return 0, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("empty embedding")
	}
	return len(vectors[0]), nil
}

// DefaultCandidates 本地 Ollama → Gemini → OpenAI → DashScope
// 远程候选仅在存在对应密钥时启用
func DefaultCandidates(ollamaCfg *config.OllamaConfig, embCfg *config.EmbeddingConfig, keys KeySource) []Candidate {
	timeout := embCfg.ProbeTimeoutDuration()

	return []Candidate{
		{
			Name: "ollama",
			Build: func(ctx context.Context) (embedding.Embedder, error) {
				return ollama.NewEmbedder(ctx, &ollama.EmbeddingConfig{
					BaseURL: ollamaCfg.BaseURL,
					Model:   ollamaCfg.EmbedModel,
					Timeout: timeout,
				})
			},
		},
		{
			Name: "gemini",
			Build: func(ctx context.Context) (embedding.Embedder, error) {
				key, err := storedKey(ctx, keys, "gemini")
				if err != nil || key == "" {
					return nil, err
				}
				return openaiemb.NewEmbedder(ctx, &openaiemb.EmbeddingConfig{
					APIKey:  key,
					BaseURL: GeminiOpenAIBaseURL,
					Model:   embCfg.GeminiModel,
					Timeout: timeout,
				})
			},
		},
		{
			Name: "openai",
			Build: func(ctx context.Context) (embedding.Embedder, error) {
				key, err := storedKey(ctx, keys, "openai")
				if err != nil || key == "" {
					return nil, err
				}
				return openaiemb.NewEmbedder(ctx, &openaiemb.EmbeddingConfig{
					APIKey:  key,
					Model:   embCfg.OpenAIModel,
					Timeout: timeout,
				})
			},
		},
		{
			Name: "dashscope",
			Build: func(ctx context.Context) (embedding.Embedder, error) {
				ds := embCfg.DashScope
				if ds.APIKey == "" {
					return nil, nil
				}
				cfg := &dashscope.EmbeddingConfig{
					APIKey:  ds.APIKey,
					Model:   ds.Model,
					Timeout: timeout,
				}
				if ds.Dimensions > 0 {
					dims := ds.Dimensions
					cfg.Dimensions = &dims
				}
				return dashscope.NewEmbedder(ctx, cfg)
			},
		},
	}
}

func storedKey(ctx context.Context, keys KeySource, provider string) (string, error) {
	if keys == nil {
		return "", nil
	}
	key, err := keys.APIKey(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("failed to load %s api key: %w", provider, err)
	}
	return key, nil
}
