package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/ashwinyue/rag-chat/internal/service/llm"
	"github.com/ashwinyue/rag-chat/internal/service/types"
)

const (
	groqModelsURL = "https://api.groq.com/openai/v1/models"

	ollamaListTimeout = 8 * time.Second
	groqListTimeout   = 10 * time.Second
)

// OllamaModels 列出本地 Ollama 模型，baseURL 为空时使用已保存的地址
// 任何失败都返回空列表
func (s *Service) OllamaModels(ctx context.Context, baseURL string) []string {
	names, err := s.listOllama(ctx, baseURL)
	if err != nil {
		log.Printf("Warning: failed to list ollama models: %v", err)
		return []string{}
	}
	return names
}

// ProviderModels 列出 Provider 可用模型
// ollama 和已保存密钥的 groq 在线获取，失败时回退到静态目录
func (s *Service) ProviderModels(ctx context.Context, provider, baseURL string) ([]string, error) {
	if !llm.IsSupported(provider) {
		return nil, types.Errorf(types.ErrNotFound, "Provider not supported.")
	}

	switch provider {
	case llm.ProviderOllama:
		names, err := s.listOllama(ctx, baseURL)
		if err != nil {
			log.Printf("Warning: failed to list ollama models: %v", err)
			return llm.CatalogModels(provider), nil
		}
		return names, nil

	case llm.ProviderGroq:
		key, err := s.APIKey(ctx, provider)
		if err != nil {
			return nil, err
		}
		if key != "" {
			names, err := s.listGroq(ctx, key)
			if err != nil {
				log.Printf("Warning: failed to list groq models: %v", err)
			} else if len(names) > 0 {
				return names, nil
			}
		}
		return llm.CatalogModels(provider), nil

	default:
		return llm.CatalogModels(provider), nil
	}
}

func (s *Service) listOllama(ctx context.Context, baseURL string) ([]string, error) {
	if baseURL == "" {
		rec, err := s.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		baseURL = rec.BaseURL
	}

	ctx, cancel := context.WithTimeout(ctx, ollamaListTimeout)
	defer cancel()
	return llm.ListOllamaModels(ctx, baseURL, s.httpClient)
}

// groqModelList Groq /models 响应
type groqModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (s *Service) listGroq(ctx context.Context, apiKey string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, groqListTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.groqModelsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("groq returned status %d", resp.StatusCode)
	}

	var list groqModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	seen := make(map[string]struct{}, len(list.Data))
	names := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID == "" {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		names = append(names, m.ID)
	}
	sort.Strings(names)
	return names, nil
}
