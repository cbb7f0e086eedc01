package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/ashwinyue/rag-chat/internal/config"
	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage S3 兼容对象存储
type MinIOStorage struct {
	client     *minio.Client
	bucketName string
	prefix     string
}

// NewMinIOStorage 创建对象存储服务，bucket 不存在时自动创建
func NewMinIOStorage(ctx context.Context, cfg *config.RemoteStorageConfig) (*MinIOStorage, error) {
	if !cfg.HasCredentials() {
		return nil, fmt.Errorf("%w: remote storage credentials are not configured", types.ErrStorage)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: remote storage bucket is not configured", types.ErrStorage)
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(strings.TrimSuffix(endpoint, "/"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize object storage client: %w", types.ErrStorage, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check bucket: %w", types.ErrStorage, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("%w: failed to create bucket: %w", types.ErrStorage, err)
		}
	}

	return &MinIOStorage{
		client:     client,
		bucketName: cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// SaveBytes 上传文件，同名对象直接覆盖
func (s *MinIOStorage) SaveBytes(ctx context.Context, docID, ext string, content []byte) (*StoredDocument, error) {
	name := StoredName(docID, ext)

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, s.objectName(name), bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to upload object: %w", types.ErrStorage, err)
	}

	return &StoredDocument{StoredName: name, SizeBytes: int64(len(content))}, nil
}

// ReadBytes 下载文件内容
func (s *MinIOStorage) ReadBytes(ctx context.Context, storedName string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucketName, s.objectName(storedName), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.readError(err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, s.readError(err)
	}
	return data, nil
}

// Delete 删除对象，对象不存在时 S3 语义本身即为成功
func (s *MinIOStorage) Delete(ctx context.Context, storedName string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, s.objectName(storedName), minio.RemoveObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("%w: failed to delete object: %w", types.ErrStorage, err)
	}
	return nil
}

// Type 存储类型
func (s *MinIOStorage) Type() StorageType {
	return StorageTypeRemote
}

// objectName 存储名映射到 {prefix}/{storedName}
func (s *MinIOStorage) objectName(storedName string) string {
	name := filepath.Base(storedName)
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *MinIOStorage) readError(err error) error {
	if isNoSuchKey(err) {
		return types.Errorf(types.ErrStorage, "Stored file not found.")
	}
	return fmt.Errorf("%w: failed to read object: %w", types.ErrStorage, err)
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}
