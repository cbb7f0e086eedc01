package model

import "time"

// AppSettingID 单例设置行的主键
const AppSettingID = 1

// AppSetting 应用设置（单行表）
type AppSetting struct {
	ID            uint      `gorm:"primaryKey"`
	Provider      string    `gorm:"size:32;not null"`
	Model         string    `gorm:"size:128;not null"`
	OllamaBaseURL string    `gorm:"size:512;not null"`
	Temperature   float64   `gorm:"not null;default:0.2"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// APIKey 按 Provider 存储的加密密钥
type APIKey struct {
	Provider     string    `gorm:"primaryKey;size:32"`
	EncryptedKey string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (AppSetting) TableName() string {
	return "app_settings"
}

func (APIKey) TableName() string {
	return "api_keys"
}
