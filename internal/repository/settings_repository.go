package repository

import (
	"context"

	"github.com/ashwinyue/rag-chat/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// settingsRepository 设置仓库
type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository 创建设置仓库
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// GetOrCreate 获取或创建单例设置
func (r *settingsRepository) GetOrCreate(ctx context.Context, defaults *model.AppSetting) (*model.AppSetting, error) {
	setting := *defaults
	setting.ID = model.AppSettingID
	err := r.db.WithContext(ctx).
		Where(model.AppSetting{ID: model.AppSettingID}).
		Attrs(setting).
		FirstOrCreate(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// Save 保存设置
func (r *settingsRepository) Save(ctx context.Context, setting *model.AppSetting) error {
	setting.ID = model.AppSettingID
	return r.db.WithContext(ctx).Save(setting).Error
}

// GetAPIKey 获取加密的 API Key
func (r *settingsRepository) GetAPIKey(ctx context.Context, provider string) (*model.APIKey, error) {
	var key model.APIKey
	if err := r.db.WithContext(ctx).Where("provider = ?", provider).First(&key).Error; err != nil {
		return nil, translate(err)
	}
	return &key, nil
}

// SetAPIKey 写入或覆盖 API Key
func (r *settingsRepository) SetAPIKey(ctx context.Context, provider, encryptedKey string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_key", "updated_at"}),
	}).Create(&model.APIKey{Provider: provider, EncryptedKey: encryptedKey}).Error
}

// RemoveAPIKey 删除 API Key
func (r *settingsRepository) RemoveAPIKey(ctx context.Context, provider string) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.APIKey{}, "provider = ?", provider)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListAPIKeyProviders 列出已存储密钥的 Provider
func (r *settingsRepository) ListAPIKeyProviders(ctx context.Context) ([]string, error) {
	var providers []string
	err := r.db.WithContext(ctx).Model(&model.APIKey{}).Order("provider").Pluck("provider", &providers).Error
	return providers, err
}
