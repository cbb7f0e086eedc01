// Package llm 多 Provider 的流式补全
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/cloudwego/eino/schema"
)

// Completer 流式补全，返回的流在 io.EOF 处结束
// 调用方必须 Close 返回的流
type Completer interface {
	Stream(ctx context.Context, messages []types.Message) (*schema.StreamReader[string], error)
}

// Factory 根据设置和密钥构造 Completer，不做网络调用
type Factory func(ctx context.Context, settings types.EffectiveSettings, apiKey string) (Completer, error)

// Registry Provider 注册表
type Registry struct {
	factories  map[string]Factory
	baseURLs   map[string]string
	httpClient *http.Client
}

// Option Registry 配置项
type Option func(*Registry)

// WithBaseURL 覆盖某个 OpenAI 兼容 Provider 的接口地址
func WithBaseURL(provider, baseURL string) Option {
	return func(r *Registry) {
		r.baseURLs[provider] = baseURL
	}
}

// WithHTTPClient 指定 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) {
		r.httpClient = c
	}
}

// WithFactory 注册或替换 Provider
func WithFactory(provider string, f Factory) Option {
	return func(r *Registry) {
		r.factories[provider] = f
	}
}

// NewRegistry 创建注册表，默认包含全部内置 Provider
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		baseURLs:  make(map[string]string, len(compatibleBaseURLs)),
	}
	for p, u := range compatibleBaseURLs {
		r.baseURLs[p] = u
	}

	r.factories[ProviderOllama] = r.newOllama
	for _, p := range []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderGroq} {
		r.factories[p] = r.newCompatible
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build 构造 Completer
func (r *Registry) Build(ctx context.Context, settings types.EffectiveSettings, apiKey string) (Completer, error) {
	factory, ok := r.factories[settings.Provider]
	if !ok {
		return nil, types.Errorf(types.ErrSettings, "Unsupported provider '%s'.", settings.Provider)
	}
	if RequiresKey(settings.Provider) && strings.TrimSpace(apiKey) == "" {
		return nil, types.Errorf(types.ErrSettings, "API key missing for provider '%s'.", settings.Provider)
	}
	return factory(ctx, settings, apiKey)
}

// StreamCompletion 构造 Completer 并开始流式补全
func (r *Registry) StreamCompletion(ctx context.Context, settings types.EffectiveSettings, apiKey string, messages []types.Message) (*schema.StreamReader[string], error) {
	c, err := r.Build(ctx, settings, apiKey)
	if err != nil {
		return nil, err
	}
	return c.Stream(ctx, messages)
}

// toSchemaMessages 转换为 eino 消息，跳过空内容，未知角色按 user 处理
func toSchemaMessages(messages []types.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case types.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case types.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

// completionError 包装为 ErrCompletion，文本保留原始错误
func completionError(err error) error {
	if errors.Is(err, types.ErrCompletion) {
		return err
	}
	return types.Wrap(types.ErrCompletion, strings.TrimSpace(err.Error()), err)
}

// Collect 读完整个流并拼接，主要用于测试和会话记录
func Collect(sr *schema.StreamReader[string]) (string, error) {
	defer sr.Close()

	var b strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}

func unsupported(provider string) error {
	return fmt.Errorf("%w: unsupported provider %q", types.ErrSettings, provider)
}
