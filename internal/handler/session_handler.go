package handler

import (
	"net/http"
	"strconv"

	"github.com/ashwinyue/rag-chat/internal/service"
	"github.com/ashwinyue/rag-chat/internal/service/chat"
	"github.com/gin-gonic/gin"
)

// SessionHandler 聊天会话处理器
type SessionHandler struct {
	svc *service.Services
}

// NewSessionHandler 创建聊天会话处理器
func NewSessionHandler(svc *service.Services) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// getPagination 获取分页参数
func getPagination(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return
}

// CreateSession 创建会话
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req chat.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
		return
	}

	session, err := h.svc.Chat.CreateSession(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, session)
}

// GetSession 获取会话
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.svc.Chat.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, session)
}

// ListSessions 列出会话
func (h *SessionHandler) ListSessions(c *gin.Context) {
	page, size := getPagination(c)

	resp, err := h.svc.Chat.ListSessions(c.Request.Context(), page, size)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, resp)
}

// UpdateSession 更新会话
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	var req chat.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
		return
	}

	session, err := h.svc.Chat.UpdateSession(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, session)
}

// DeleteSession 删除会话
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.svc.Chat.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}

// GetMessages 获取会话历史
func (h *SessionHandler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.svc.Chat.GetSession(ctx, id); err != nil {
		Error(c, err)
		return
	}

	msgs, err := h.svc.Chat.History(ctx, id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"messages": msgs})
}
