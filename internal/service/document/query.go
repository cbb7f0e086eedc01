package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashwinyue/rag-chat/internal/model"
	"github.com/ashwinyue/rag-chat/internal/repository"
	"github.com/ashwinyue/rag-chat/internal/service/types"
)

// FailedUpload 批量上传中失败的文件
type FailedUpload struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// BatchResult 批量上传结果
type BatchResult struct {
	Indexed []*model.Document `json:"indexed"`
	Failed  []FailedUpload    `json:"failed"`
}

// BatchUpload 逐个上传，单个文件失败不影响其余文件
func (s *Service) BatchUpload(ctx context.Context, uploads []Upload) (*BatchResult, error) {
	if len(uploads) == 0 {
		return nil, types.Errorf(types.ErrIngestion, msgNoFiles)
	}

	result := &BatchResult{
		Indexed: make([]*model.Document, 0, len(uploads)),
		Failed:  make([]FailedUpload, 0),
	}
	for _, up := range uploads {
		doc, err := s.Upload(ctx, up)
		if err != nil {
			filename := up.Filename
			if filename == "" {
				filename = "unknown"
			}
			result.Failed = append(result.Failed, FailedUpload{Filename: filename, Reason: types.Detail(err)})
			continue
		}
		result.Indexed = append(result.Indexed, doc)
	}
	return result, nil
}

// List 按创建时间倒序列出文档
func (s *Service) List(ctx context.Context) ([]*model.Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Get 获取文档
func (s *Service) Get(ctx context.Context, docID string) (*model.Document, error) {
	doc, err := s.repo.Get(ctx, docID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, types.Wrap(types.ErrNotFound, msgDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// StorageStats 文档数量与总字节数
func (s *Service) StorageStats(ctx context.Context) (*Stats, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Count: len(docs)}
	for _, d := range docs {
		stats.Bytes += d.SizeBytes
	}
	return stats, nil
}
