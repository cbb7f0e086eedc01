package repository

import (
	"context"

	"github.com/ashwinyue/rag-chat/internal/model"
	"gorm.io/gorm"
)

// documentRepository 文档仓库
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓库
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// List 列出全部文档
func (r *documentRepository) List(ctx context.Context) ([]*model.Document, error) {
	var docs []*model.Document
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&docs).Error
	return docs, err
}

// Get 获取文档
func (r *documentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

// Upsert 创建或整体更新文档
func (r *documentRepository) Upsert(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

// Delete 删除文档
func (r *documentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Document{}, "id = ?", id).Error
}
