package handler

import (
	"github.com/ashwinyue/rag-chat/internal/service"
	"github.com/gin-gonic/gin"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	svc *service.Services
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(svc *service.Services) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// Health 健康检查
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	Success(c, gin.H{"status": "ok"})
}

// GetSystemInfo 获取系统信息
// GET /api/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	cfg := h.svc.Config
	Success(c, gin.H{
		"name":            cfg.App.Name,
		"environment":     cfg.App.Environment,
		"vector_backend":  cfg.Vector.Backend,
		"storage_backend": h.svc.Storage.Type(),
		"max_upload_mb":   cfg.Upload.MaxSizeMB,
	})
}
