package repository

import (
	"context"

	"github.com/ashwinyue/rag-chat/internal/model"
	"gorm.io/gorm"
)

// chatRepository 聊天会话数据访问
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建聊天仓库
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// Create 创建会话
func (r *chatRepository) Create(ctx context.Context, session *model.ChatSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// Get 获取会话
func (r *chatRepository) Get(ctx context.Context, id string) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// List 列出会话（最近更新的在前）
func (r *chatRepository) List(ctx context.Context, offset, limit int) ([]*model.ChatSession, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.ChatSession{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []*model.ChatSession
	err := r.db.WithContext(ctx).Order("updated_at DESC").Offset(offset).Limit(limit).Find(&sessions).Error
	return sessions, total, err
}

// Update 更新会话
func (r *chatRepository) Update(ctx context.Context, session *model.ChatSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

// Delete 删除会话
func (r *chatRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.ChatSession{}, "id = ?", id).Error
}
