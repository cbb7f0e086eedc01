// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"

	"github.com/ashwinyue/rag-chat/internal/model"
)

// DocumentRepository 文档元数据访问接口
type DocumentRepository interface {
	// List 按创建时间倒序返回全部文档
	List(ctx context.Context) ([]*model.Document, error)
	// Get 不存在时返回 ErrNotFound
	Get(ctx context.Context, id string) (*model.Document, error)
	Upsert(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, id string) error
}

// SettingsRepository 设置单例与 API Key 行访问接口
type SettingsRepository interface {
	// GetOrCreate 返回单例设置行，不存在时以 defaults 创建
	GetOrCreate(ctx context.Context, defaults *model.AppSetting) (*model.AppSetting, error)
	Save(ctx context.Context, setting *model.AppSetting) error

	// GetAPIKey 不存在时返回 ErrNotFound
	GetAPIKey(ctx context.Context, provider string) (*model.APIKey, error)
	SetAPIKey(ctx context.Context, provider, encryptedKey string) error
	// RemoveAPIKey 返回是否确实删除了记录
	RemoveAPIKey(ctx context.Context, provider string) (bool, error)
	ListAPIKeyProviders(ctx context.Context) ([]string, error)
}

// ChatRepository 聊天会话访问接口
type ChatRepository interface {
	Create(ctx context.Context, session *model.ChatSession) error
	Get(ctx context.Context, id string) (*model.ChatSession, error)
	List(ctx context.Context, offset, limit int) ([]*model.ChatSession, int64, error)
	Update(ctx context.Context, session *model.ChatSession) error
	Delete(ctx context.Context, id string) error
}

// 确保实现了接口
var (
	_ DocumentRepository = (*documentRepository)(nil)
	_ SettingsRepository = (*settingsRepository)(nil)
	_ ChatRepository     = (*chatRepository)(nil)
)
