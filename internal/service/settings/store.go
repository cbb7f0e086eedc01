// Package settings 模型设置与 API Key 管理
// 设置是单例，支持数据库和本地文件两种持久化方式
package settings

import (
	"context"

	"github.com/ashwinyue/rag-chat/internal/service/llm"
)

// DefaultTemperature 默认温度
const DefaultTemperature = 0.2

// Record 持久化的设置单例
type Record struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	BaseURL     string  `json:"ollama_base_url"`
	Temperature float64 `json:"temperature"`
}

// DefaultRecord 首次使用时写入的默认设置
func DefaultRecord(ollamaBaseURL string) Record {
	return Record{
		Provider:    llm.DefaultProvider,
		Model:       llm.DefaultModels[llm.DefaultProvider],
		BaseURL:     ollamaBaseURL,
		Temperature: DefaultTemperature,
	}
}

// Store 设置持久化接口，实现内部串行化所有写操作
type Store interface {
	// Load 读取设置，不存在时以默认值创建
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error

	// SaveAPIKey 加密后保存，覆盖已有值
	SaveAPIKey(ctx context.Context, provider, plainKey string) error
	// RemoveAPIKey 返回是否确实删除了密钥
	RemoveAPIKey(ctx context.Context, provider string) (bool, error)
	// APIKey 返回解密后的密钥，未保存时返回空串
	APIKey(ctx context.Context, provider string) (string, error)
	// KeyProviders 已保存密钥的 Provider
	KeyProviders(ctx context.Context) ([]string, error)
}
