// Package document 文档上传、替换与删除
// 每个写操作都是一个 saga：解析→分块→存储→索引→记录，失败时逆序补偿
package document

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ashwinyue/rag-chat/internal/model"
	"github.com/ashwinyue/rag-chat/internal/repository"
	"github.com/ashwinyue/rag-chat/internal/service/file"
	"github.com/ashwinyue/rag-chat/internal/service/knowledge"
	"github.com/ashwinyue/rag-chat/internal/service/types"
)

const (
	msgMissingFilename  = "Missing filename."
	msgUploadEmpty      = "Uploaded file is empty."
	msgReplaceEmpty     = "Replacement file is empty."
	msgNoText           = "No readable text found in this file."
	msgNoTextReplace    = "No readable text found in replacement file."
	msgDocumentNotFound = "Document not found."
	msgNoFiles          = "No files uploaded."
)

// Indexer 文档块索引，vectorstore.Index 的子集
type Indexer interface {
	AddChunks(ctx context.Context, docID, filename string, chunks []string) error
	// DeleteDocument 尽力删除，失败只记录日志
	DeleteDocument(ctx context.Context, docID string)
}

// Upload 待上传的文件
type Upload struct {
	Filename string
	Content  []byte
}

// Stats 存储统计
type Stats struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

// Service 文档服务
type Service struct {
	repo      repository.DocumentRepository
	parser    knowledge.Extractor
	chunker   knowledge.Chunker
	storage   file.Storage
	index     Indexer
	maxSizeMB int

	locks *keyedMutex
	newID func() string
}

// NewService 创建文档服务
func NewService(
	repo repository.DocumentRepository,
	parser knowledge.Extractor,
	chunker knowledge.Chunker,
	storage file.Storage,
	index Indexer,
	maxSizeMB int,
) *Service {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	return &Service{
		repo:      repo,
		parser:    parser,
		chunker:   chunker,
		storage:   storage,
		index:     index,
		maxSizeMB: maxSizeMB,
		locks:     newKeyedMutex(),
		newID:     uuid.NewString,
	}
}

// Upload 上传并索引新文档
func (s *Service) Upload(ctx context.Context, up Upload) (*model.Document, error) {
	name, ext, err := s.validate(up, msgUploadEmpty)
	if err != nil {
		return nil, err
	}

	chunks, err := s.extractChunks(ctx, ext, up.Content)
	if err != nil {
		return nil, types.Wrap(types.ErrIngestion, "Unable to parse file: "+types.Detail(err), err)
	}
	if len(chunks) == 0 {
		return nil, types.Errorf(types.ErrIngestion, msgNoText)
	}

	docID := s.newID()
	var tx saga

	stored, err := s.storage.SaveBytes(ctx, docID, ext, up.Content)
	if err != nil {
		return nil, types.Wrap(types.ErrIngestion, "Storage error: "+types.Detail(err), err)
	}
	tx.onRollback(func(ctx context.Context) {
		s.deleteBytes(ctx, stored.StoredName)
	})

	if err := s.addChunks(ctx, docID, name, chunks); err != nil {
		tx.rollback(ctx)
		return nil, types.Wrap(types.ErrIngestion, "Failed to index file: "+types.Detail(err), err)
	}
	tx.onRollback(func(ctx context.Context) {
		s.index.DeleteDocument(ctx, docID)
	})

	doc := &model.Document{
		ID:           docID,
		OriginalName: name,
		StoredName:   stored.StoredName,
		FileType:     strings.TrimPrefix(ext, "."),
		SizeBytes:    stored.SizeBytes,
		ChunkCount:   len(chunks),
	}
	if err := s.repo.Upsert(ctx, doc); err != nil {
		tx.rollback(ctx)
		return nil, types.Wrap(types.ErrIngestion, "Failed to index file: "+err.Error(), err)
	}

	log.Printf("Indexed document %s (%s, %d chunks)", docID, name, len(chunks))
	return doc, nil
}

// Replace 用新文件替换已有文档，失败时尽力恢复旧内容
func (s *Service) Replace(ctx context.Context, docID string, up Upload) (*model.Document, error) {
	unlock := s.locks.Lock(docID)
	defer unlock()

	row, err := s.repo.Get(ctx, docID)
	if err != nil {
		return nil, s.lookupError(err)
	}

	name, ext, err := s.validate(up, msgReplaceEmpty)
	if err != nil {
		return nil, err
	}

	oldName := row.StoredName
	oldFilename := row.OriginalName
	snapshot, err := s.storage.ReadBytes(ctx, oldName)
	if err != nil {
		log.Printf("Warning: no snapshot of %s before replace: %v", oldName, err)
		snapshot = nil
	}

	chunks, err := s.extractChunks(ctx, ext, up.Content)
	if err != nil {
		return nil, replaceError(err)
	}
	if len(chunks) == 0 {
		return nil, replaceError(types.Errorf(types.ErrIngestion, msgNoTextReplace))
	}

	var tx saga

	stored, err := s.storage.SaveBytes(ctx, docID, ext, up.Content)
	if err != nil {
		return nil, replaceError(err)
	}
	tx.onRollback(func(ctx context.Context) {
		if stored.StoredName != oldName {
			s.deleteBytes(ctx, stored.StoredName)
		}
		if snapshot != nil {
			if _, err := s.storage.SaveBytes(ctx, docID, filepath.Ext(oldName), snapshot); err != nil {
				log.Printf("Warning: failed to restore %s: %v", oldName, err)
			}
		}
	})

	s.index.DeleteDocument(ctx, docID)
	tx.onRollback(func(ctx context.Context) {
		s.restoreIndex(ctx, docID, oldFilename, oldName, snapshot)
	})
	if err := s.addChunks(ctx, docID, name, chunks); err != nil {
		tx.rollback(ctx)
		return nil, replaceError(err)
	}

	if stored.StoredName != oldName {
		if err := s.storage.Delete(ctx, oldName); err != nil {
			tx.rollback(ctx)
			return nil, replaceError(err)
		}
	}

	row.OriginalName = name
	row.StoredName = stored.StoredName
	row.FileType = strings.TrimPrefix(ext, ".")
	row.SizeBytes = stored.SizeBytes
	row.ChunkCount = len(chunks)
	if err := s.repo.Upsert(ctx, row); err != nil {
		tx.rollback(ctx)
		return nil, replaceError(err)
	}

	log.Printf("Replaced document %s (%s, %d chunks)", docID, name, len(chunks))
	return row, nil
}

// Delete 删除文档：索引、文件、记录，记录最后删除
func (s *Service) Delete(ctx context.Context, docID string) error {
	unlock := s.locks.Lock(docID)
	defer unlock()

	row, err := s.repo.Get(ctx, docID)
	if err != nil {
		return s.lookupError(err)
	}

	s.index.DeleteDocument(ctx, docID)

	if err := s.storage.Delete(ctx, row.StoredName); err != nil {
		log.Printf("Warning: failed to delete stored file %s: %v", row.StoredName, err)
	}

	if err := s.repo.Delete(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	log.Printf("Deleted document %s (%s)", docID, row.OriginalName)
	return nil
}

// validate 依次检查文件名、扩展名、是否为空、大小上限
func (s *Service) validate(up Upload, emptyMsg string) (name, ext string, err error) {
	name = strings.TrimSpace(up.Filename)
	if name == "" {
		return "", "", types.Errorf(types.ErrIngestion, msgMissingFilename)
	}

	ext = strings.ToLower(filepath.Ext(name))
	if !s.parser.Supported(ext) {
		return "", "", types.Errorf(types.ErrIngestion, "Unsupported file type '%s'. Allowed: %s.", ext, knowledge.AllowedTypesLabel)
	}

	if len(up.Content) == 0 {
		return "", "", types.Wrap(types.ErrIngestion, emptyMsg)
	}
	if int64(len(up.Content)) > int64(s.maxSizeMB)*1024*1024 {
		return "", "", types.Errorf(types.ErrIngestion, "File exceeds %d MB limit.", s.maxSizeMB)
	}
	return name, ext, nil
}

func (s *Service) extractChunks(ctx context.Context, ext string, content []byte) ([]string, error) {
	text, err := s.parser.Extract(ctx, ext, content)
	if err != nil {
		return nil, err
	}
	return s.chunker.Chunk(ctx, text)
}

// addChunks 写入失败时清理已写入的部分
func (s *Service) addChunks(ctx context.Context, docID, filename string, chunks []string) error {
	if err := s.index.AddChunks(ctx, docID, filename, chunks); err != nil {
		s.index.DeleteDocument(context.WithoutCancel(ctx), docID)
		return err
	}
	return nil
}

// restoreIndex 用旧文件内容重建索引，没有快照时只清理新写入的块
func (s *Service) restoreIndex(ctx context.Context, docID, filename, storedName string, snapshot []byte) {
	s.index.DeleteDocument(ctx, docID)
	if snapshot == nil {
		return
	}

	chunks, err := s.extractChunks(ctx, strings.ToLower(filepath.Ext(storedName)), snapshot)
	if err != nil {
		log.Printf("Warning: failed to re-parse %s during rollback: %v", storedName, err)
		return
	}
	if err := s.index.AddChunks(ctx, docID, filename, chunks); err != nil {
		log.Printf("Warning: failed to re-index %s during rollback: %v", docID, err)
	}
}

func (s *Service) deleteBytes(ctx context.Context, storedName string) {
	if err := s.storage.Delete(ctx, storedName); err != nil {
		log.Printf("Warning: failed to delete %s during rollback: %v", storedName, err)
	}
}

func (s *Service) lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return types.Wrap(types.ErrIngestion, msgDocumentNotFound, types.ErrNotFound)
	}
	return fmt.Errorf("failed to get document: %w", err)
}

func replaceError(err error) error {
	return types.Wrap(types.ErrIngestion, "Failed to replace document: "+types.Detail(err), err)
}
