package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ashwinyue/rag-chat/internal/service"
	"github.com/ashwinyue/rag-chat/internal/service/settings"
	"github.com/gin-gonic/gin"
)

// SettingsHandler 模型设置处理器
type SettingsHandler struct {
	svc *service.Services
}

// NewSettingsHandler 创建模型设置处理器
func NewSettingsHandler(svc *service.Services) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// UpdateSettingsRequest 更新设置请求
type UpdateSettingsRequest struct {
	Provider      string   `json:"provider" binding:"required,min=2,max=32"`
	Model         string   `json:"model" binding:"required,min=1,max=128"`
	OllamaBaseURL string   `json:"ollama_base_url" binding:"omitempty,min=10,max=512"`
	Temperature   *float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
}

// SaveAPIKeyRequest 保存 API Key 请求
type SaveAPIKeyRequest struct {
	APIKey string `json:"api_key" binding:"required,min=10,max=500"`
}

// ModelsResponse 模型列表响应
type ModelsResponse struct {
	Models []string `json:"models"`
}

// GetSettings 获取当前设置
// GET /api/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	payload, err := h.svc.Settings.Payload(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, payload)
}

// UpdateSettings 更新设置
// PUT /api/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	update := settings.UpdateRequest{
		Provider:      normalizeProvider(req.Provider),
		Model:         strings.TrimSpace(req.Model),
		OllamaBaseURL: strings.TrimSpace(req.OllamaBaseURL),
		Temperature:   settings.DefaultTemperature,
	}
	if req.Temperature != nil {
		update.Temperature = *req.Temperature
	}
	// 未提供地址时沿用当前值
	if update.OllamaBaseURL == "" {
		current, err := h.svc.Settings.EffectiveSettings(ctx)
		if err != nil {
			Error(c, err)
			return
		}
		update.OllamaBaseURL = current.BaseURL
	}

	payload, err := h.svc.Settings.Update(ctx, update)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, payload)
}

// SaveAPIKey 保存 API Key
// PUT /api/settings/api-keys/:provider
func (h *SettingsHandler) SaveAPIKey(c *gin.Context) {
	provider := normalizeProvider(c.Param("provider"))

	var req SaveAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.svc.Settings.SaveAPIKey(c.Request.Context(), provider, strings.TrimSpace(req.APIKey)); err != nil {
		Error(c, err)
		return
	}

	Message(c, fmt.Sprintf("API key saved for %s.", provider))
}

// RemoveAPIKey 删除 API Key
// DELETE /api/settings/api-keys/:provider
func (h *SettingsHandler) RemoveAPIKey(c *gin.Context) {
	provider := normalizeProvider(c.Param("provider"))

	removed, err := h.svc.Settings.RemoveAPIKey(c.Request.Context(), provider)
	if err != nil {
		Error(c, err)
		return
	}
	if !removed {
		NotFound(c, "API key not found.")
		return
	}

	Message(c, fmt.Sprintf("API key removed for %s.", provider))
}

// OllamaModels 列出本地 Ollama 模型
// GET /api/settings/ollama-models?base_url=
func (h *SettingsHandler) OllamaModels(c *gin.Context) {
	models := h.svc.Settings.OllamaModels(c.Request.Context(), strings.TrimSpace(c.Query("base_url")))
	c.JSON(http.StatusOK, ModelsResponse{Models: models})
}

// ProviderModels 列出 Provider 可用模型
// GET /api/settings/provider-models/:provider?base_url=
func (h *SettingsHandler) ProviderModels(c *gin.Context) {
	provider := normalizeProvider(c.Param("provider"))

	models, err := h.svc.Settings.ProviderModels(c.Request.Context(), provider, strings.TrimSpace(c.Query("base_url")))
	if err != nil {
		Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ModelsResponse{Models: models})
}

func normalizeProvider(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
