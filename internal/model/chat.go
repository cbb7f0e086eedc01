package model

import "time"

// ChatSession 聊天会话
type ChatSession struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Title     string    `json:"title" gorm:"size:200;not null"`
	Preview   string    `json:"preview" gorm:"size:400"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ChatSession) TableName() string {
	return "chat_sessions"
}
