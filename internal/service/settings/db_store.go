package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ashwinyue/rag-chat/internal/model"
	"github.com/ashwinyue/rag-chat/internal/repository"
	"github.com/ashwinyue/rag-chat/internal/service/secret"
	"github.com/ashwinyue/rag-chat/internal/service/types"
)

// DBStore 基于数据库的设置存储
type DBStore struct {
	repo     repository.SettingsRepository
	cipher   *secret.Cipher
	defaults Record

	mu sync.Mutex
}

// NewDBStore 创建数据库设置存储
func NewDBStore(repo repository.SettingsRepository, cipher *secret.Cipher, defaults Record) *DBStore {
	return &DBStore{repo: repo, cipher: cipher, defaults: defaults}
}

// Load 读取设置单例
func (s *DBStore) Load(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.repo.GetOrCreate(ctx, &model.AppSetting{
		Provider:      s.defaults.Provider,
		Model:         s.defaults.Model,
		OllamaBaseURL: s.defaults.BaseURL,
		Temperature:   s.defaults.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return &Record{
		Provider:    row.Provider,
		Model:       row.Model,
		BaseURL:     row.OllamaBaseURL,
		Temperature: row.Temperature,
	}, nil
}

// Save 保存设置单例
func (s *DBStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repo.Save(ctx, &model.AppSetting{
		ID:            model.AppSettingID,
		Provider:      rec.Provider,
		Model:         rec.Model,
		OllamaBaseURL: rec.BaseURL,
		Temperature:   rec.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// SaveAPIKey 加密并保存 API Key
func (s *DBStore) SaveAPIKey(ctx context.Context, provider, plainKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encrypted, err := s.cipher.Encrypt(plainKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt api key: %w", err)
	}
	if err := s.repo.SetAPIKey(ctx, provider, encrypted); err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

// RemoveAPIKey 删除 API Key
func (s *DBStore) RemoveAPIKey(ctx context.Context, provider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.repo.RemoveAPIKey(ctx, provider)
	if err != nil {
		return false, fmt.Errorf("failed to remove api key: %w", err)
	}
	return removed, nil
}

// APIKey 读取并解密 API Key
func (s *DBStore) APIKey(ctx context.Context, provider string) (string, error) {
	row, err := s.repo.GetAPIKey(ctx, provider)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load api key: %w", err)
	}
	return decryptKey(s.cipher, provider, row.EncryptedKey)
}

// KeyProviders 已保存密钥的 Provider
func (s *DBStore) KeyProviders(ctx context.Context) ([]string, error) {
	providers, err := s.repo.ListAPIKeyProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return providers, nil
}

func decryptKey(cipher *secret.Cipher, provider, encrypted string) (string, error) {
	plain, err := cipher.Decrypt(encrypted)
	if err != nil {
		msg := fmt.Sprintf("Stored API key for provider '%s' could not be decrypted.", provider)
		return "", types.Wrap(types.ErrSettings, msg, err)
	}
	return plain, nil
}
