package handler

import (
	"github.com/ashwinyue/rag-chat/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Chat     *ChatHandler
	Session  *SessionHandler
	File     *FileHandler
	Settings *SettingsHandler
	System   *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Chat:     NewChatHandler(svc),
		Session:  NewSessionHandler(svc),
		File:     NewFileHandler(svc),
		Settings: NewSettingsHandler(svc),
		System:   NewSystemHandler(svc),
	}
}
