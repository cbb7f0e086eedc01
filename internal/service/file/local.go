package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ashwinyue/rag-chat/internal/service/types"
)

// LocalStorage 本地文件存储，文件平铺在 basePath 下
type LocalStorage struct {
	basePath string
}

// NewLocalStorage 创建本地存储服务
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./data/uploads"
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create base directory: %w", types.ErrStorage, err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

// SaveBytes 保存文件到 {basePath}/{docID}{ext}
func (s *LocalStorage) SaveBytes(_ context.Context, docID, ext string, content []byte) (*StoredDocument, error) {
	name := StoredName(docID, ext)
	fullPath, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return nil, fmt.Errorf("%w: failed to write file: %w", types.ErrStorage, err)
	}

	return &StoredDocument{StoredName: name, SizeBytes: int64(len(content))}, nil
}

// ReadBytes 读取文件内容
func (s *LocalStorage) ReadBytes(_ context.Context, storedName string) ([]byte, error) {
	fullPath, err := s.resolve(storedName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.Errorf(types.ErrStorage, "Stored file not found.")
		}
		return nil, fmt.Errorf("%w: failed to read file: %w", types.ErrStorage, err)
	}
	return data, nil
}

// Delete 删除文件，文件不存在视为成功
func (s *LocalStorage) Delete(_ context.Context, storedName string) error {
	fullPath, err := s.resolve(storedName)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to delete file: %w", types.ErrStorage, err)
	}
	return nil
}

// Type 存储类型
func (s *LocalStorage) Type() StorageType {
	return StorageTypeLocal
}

// resolve 存储名只允许是单层文件名
func (s *LocalStorage) resolve(storedName string) (string, error) {
	if storedName == "" || storedName != filepath.Base(storedName) || storedName == "." || storedName == ".." {
		return "", fmt.Errorf("%w: invalid stored name %q", types.ErrStorage, storedName)
	}
	return filepath.Join(s.basePath, storedName), nil
}
