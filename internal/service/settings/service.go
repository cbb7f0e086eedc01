package settings

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ashwinyue/rag-chat/internal/service/llm"
	"github.com/ashwinyue/rag-chat/internal/service/types"
)

// Payload 设置接口的完整响应
type Payload struct {
	Provider           string              `json:"provider"`
	Model              string              `json:"model"`
	OllamaBaseURL      string              `json:"ollama_base_url"`
	Temperature        float64             `json:"temperature"`
	AvailableProviders []string            `json:"available_providers"`
	DefaultModels      map[string]string   `json:"default_models"`
	ModelCatalog       map[string][]string `json:"model_catalog"`
	APIKeyStatus       map[string]bool     `json:"api_key_status"`
}

// UpdateRequest 更新设置的参数
type UpdateRequest struct {
	Provider      string
	Model         string
	OllamaBaseURL string
	Temperature   float64
}

// Service 设置服务
type Service struct {
	store         Store
	httpClient    *http.Client
	groqModelsURL string
}

// Option Service 配置项
type Option func(*Service)

// WithHTTPClient 模型列表请求使用的 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.httpClient = c
	}
}

// WithGroqModelsURL 覆盖 Groq 模型列表地址
func WithGroqModelsURL(u string) Option {
	return func(s *Service) {
		s.groqModelsURL = u
	}
}

// NewService 创建设置服务
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		httpClient:    http.DefaultClient,
		groqModelsURL: groqModelsURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Payload 返回当前设置及 Provider 目录
func (s *Service) Payload(ctx context.Context) (*Payload, error) {
	rec, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	status, err := s.APIKeyStatus(ctx)
	if err != nil {
		return nil, err
	}

	catalog := make(map[string][]string, len(llm.ModelCatalog))
	for p := range llm.ModelCatalog {
		catalog[p] = llm.CatalogModels(p)
	}
	defaults := make(map[string]string, len(llm.DefaultModels))
	for p, m := range llm.DefaultModels {
		defaults[p] = m
	}

	return &Payload{
		Provider:           rec.Provider,
		Model:              rec.Model,
		OllamaBaseURL:      rec.BaseURL,
		Temperature:        rec.Temperature,
		AvailableProviders: append([]string{}, llm.SupportedProviders...),
		DefaultModels:      defaults,
		ModelCatalog:       catalog,
		APIKeyStatus:       status,
	}, nil
}

// Update 更新设置，非默认 Provider 必须先保存 API Key
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Payload, error) {
	if !llm.IsSupported(req.Provider) {
		return nil, types.Errorf(types.ErrSettings, "Unsupported provider.")
	}
	if llm.RequiresKey(req.Provider) {
		has, err := s.HasAPIKey(ctx, req.Provider)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, types.Errorf(types.ErrSettings, "API key required for provider '%s'.", req.Provider)
		}
	}

	modelName := strings.TrimSpace(req.Model)
	if modelName == "" {
		modelName = llm.DefaultModels[req.Provider]
	}

	err := s.store.Save(ctx, &Record{
		Provider:    req.Provider,
		Model:       modelName,
		BaseURL:     req.OllamaBaseURL,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return s.Payload(ctx)
}

// SaveAPIKey 保存 Provider 的 API Key
func (s *Service) SaveAPIKey(ctx context.Context, provider, plainKey string) error {
	if !llm.RequiresKey(provider) {
		return types.Errorf(types.ErrSettings, "Invalid provider for API key storage.")
	}
	return s.store.SaveAPIKey(ctx, provider, plainKey)
}

// RemoveAPIKey 删除 Provider 的 API Key，返回是否存在
func (s *Service) RemoveAPIKey(ctx context.Context, provider string) (bool, error) {
	if !llm.RequiresKey(provider) {
		return false, types.Errorf(types.ErrSettings, "Invalid provider.")
	}
	return s.store.RemoveAPIKey(ctx, provider)
}

// HasAPIKey 是否已保存 API Key
func (s *Service) HasAPIKey(ctx context.Context, provider string) (bool, error) {
	key, err := s.store.APIKey(ctx, provider)
	if err != nil {
		return false, err
	}
	return key != "", nil
}

// APIKey 返回解密后的 API Key，默认 Provider 始终为空
func (s *Service) APIKey(ctx context.Context, provider string) (string, error) {
	if !llm.RequiresKey(provider) {
		return "", nil
	}
	return s.store.APIKey(ctx, provider)
}

// APIKeyStatus 所有需要密钥的 Provider 是否已保存密钥
func (s *Service) APIKeyStatus(ctx context.Context) (map[string]bool, error) {
	status := make(map[string]bool)
	for _, p := range llm.KeyedProviders() {
		status[p] = false
	}

	providers, err := s.store.KeyProviders(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range providers {
		if llm.RequiresKey(p) {
			status[p] = true
		}
	}
	return status, nil
}

// EffectiveSettings 生效的设置，未保存模型时使用 Provider 默认模型
func (s *Service) EffectiveSettings(ctx context.Context) (types.EffectiveSettings, error) {
	rec, err := s.store.Load(ctx)
	if err != nil {
		return types.EffectiveSettings{}, fmt.Errorf("failed to resolve settings: %w", err)
	}

	modelName := rec.Model
	if modelName == "" {
		modelName = llm.DefaultModels[rec.Provider]
	}
	return types.EffectiveSettings{
		Provider:    rec.Provider,
		Model:       modelName,
		BaseURL:     rec.BaseURL,
		Temperature: rec.Temperature,
	}, nil
}
