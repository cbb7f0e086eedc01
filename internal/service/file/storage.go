package file

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ashwinyue/rag-chat/internal/config"
)

// Storage 原始文件字节存储接口
type Storage interface {
	// SaveBytes 保存文件，同名对象直接覆盖
	SaveBytes(ctx context.Context, docID, ext string, content []byte) (*StoredDocument, error)
	// ReadBytes 读取文件内容，对象不存在时返回 ErrStorage
	ReadBytes(ctx context.Context, storedName string) ([]byte, error)
	// Delete 删除文件
	Delete(ctx context.Context, storedName string) error
	// Type 存储类型
	Type() StorageType
}

// StoredDocument 保存结果
type StoredDocument struct {
	StoredName string
	SizeBytes  int64
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal  StorageType = "local"
	StorageTypeRemote StorageType = "remote"
)

// remoteInitTimeout 远程存储初始化（检查 bucket）超时
const remoteInitTimeout = 10 * time.Second

// StoredName 根据文档 ID 和扩展名生成存储名
func StoredName(docID, ext string) string {
	return docID + ext
}

// NewStorage 按配置选择存储后端
// 显式配置优先；否则有远程凭证时尝试远程，失败回退本地；否则本地
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	switch StorageType(strings.ToLower(strings.TrimSpace(cfg.Backend))) {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalDir)

	case StorageTypeRemote, "minio", "s3":
		initCtx, cancel := context.WithTimeout(ctx, remoteInitTimeout)
		defer cancel()
		return NewMinIOStorage(initCtx, &cfg.Remote)

	case "":
		if cfg.Remote.HasCredentials() {
			initCtx, cancel := context.WithTimeout(ctx, remoteInitTimeout)
			defer cancel()
			remote, err := NewMinIOStorage(initCtx, &cfg.Remote)
			if err == nil {
				return remote, nil
			}
			log.Printf("Warning: remote storage unavailable, falling back to local: %v", err)
		}
		return NewLocalStorage(cfg.LocalDir)

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
