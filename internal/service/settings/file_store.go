package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ashwinyue/rag-chat/internal/service/secret"
)

// fileData settings.json 的内容
type fileData struct {
	Record
	APIKeys map[string]string `json:"api_keys"`
}

// FileStore 基于本地 JSON 文件的设置存储，API Key 加密后写入同一文件
type FileStore struct {
	path     string
	cipher   *secret.Cipher
	defaults Record

	mu sync.Mutex
}

// NewFileStore 创建文件设置存储
func NewFileStore(path string, cipher *secret.Cipher, defaults Record) *FileStore {
	return &FileStore{path: path, cipher: cipher, defaults: defaults}
}

// Load 读取设置，文件不存在或损坏时写回默认值
func (s *FileStore) Load(_ context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	rec := data.Record
	return &rec, nil
}

// Save 保存设置，保留已有的 API Key
func (s *FileStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data.Record = *rec
	return s.write(data)
}

// SaveAPIKey 加密并保存 API Key
func (s *FileStore) SaveAPIKey(_ context.Context, provider, plainKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	encrypted, err := s.cipher.Encrypt(plainKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt api key: %w", err)
	}
	data.APIKeys[provider] = encrypted
	return s.write(data)
}

// RemoveAPIKey 删除 API Key
func (s *FileStore) RemoveAPIKey(_ context.Context, provider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return false, err
	}
	if _, ok := data.APIKeys[provider]; !ok {
		return false, nil
	}
	delete(data.APIKeys, provider)
	if err := s.write(data); err != nil {
		return false, err
	}
	return true, nil
}

// APIKey 读取并解密 API Key
func (s *FileStore) APIKey(_ context.Context, provider string) (string, error) {
	s.mu.Lock()
	data, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	encrypted := data.APIKeys[provider]
	if encrypted == "" {
		return "", nil
	}
	return decryptKey(s.cipher, provider, encrypted)
}

// KeyProviders 已保存密钥的 Provider，按名称排序
func (s *FileStore) KeyProviders(_ context.Context) ([]string, error) {
	s.mu.Lock()
	data, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	providers := make([]string, 0, len(data.APIKeys))
	for p := range data.APIKeys {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers, nil
}

// read 调用方需持有锁
func (s *FileStore) read() (*fileData, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.reset()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	data := s.defaultData()
	if err := json.Unmarshal(raw, data); err != nil {
		log.Printf("Warning: settings file %s is corrupt, resetting to defaults: %v", s.path, err)
		return s.reset()
	}
	if data.APIKeys == nil {
		data.APIKeys = make(map[string]string)
	}
	return data, nil
}

func (s *FileStore) reset() (*fileData, error) {
	data := s.defaultData()
	if err := s.write(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *FileStore) defaultData() *fileData {
	return &fileData{Record: s.defaults, APIKeys: make(map[string]string)}
}

// write 先写临时文件再重命名
func (s *FileStore) write(data *fileData) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
