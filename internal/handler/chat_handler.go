package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/ashwinyue/rag-chat/internal/service"
	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/gin-gonic/gin"
)

// ChatHandler 问答处理器
type ChatHandler struct {
	svc *service.Services
}

// NewChatHandler 创建问答处理器
func NewChatHandler(svc *service.Services) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// HistoryItem 历史消息
type HistoryItem struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content" binding:"required,min=1"`
}

// ChatRequest 问答请求
// SessionID 可选，指定后请求未携带 history 时使用会话中保存的历史
type ChatRequest struct {
	Message   string        `json:"message" binding:"required,min=1,max=10000"`
	History   []HistoryItem `json:"history" binding:"omitempty,dive"`
	SessionID string        `json:"session_id"`
}

// StreamEvent NDJSON 流中的一行
type StreamEvent struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

const (
	eventToken = "token"
	eventDone  = "done"
)

// Stream 流式问答
// POST /api/chat/stream
func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	history := toMessages(req.History)
	if len(history) == 0 && req.SessionID != "" {
		stored, err := h.svc.Chat.History(ctx, req.SessionID)
		if err != nil {
			log.Printf("Warning: failed to load history for session %s: %v", req.SessionID, err)
		}
		history = stored
	}

	tokens := h.svc.RAG.StreamAnswer(ctx, req.Message, history)

	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	var answer strings.Builder
	for token := range tokens {
		if err := enc.Encode(StreamEvent{Type: eventToken, Data: token}); err != nil {
			log.Printf("Warning: failed to write token: %v", err)
			return
		}
		c.Writer.Flush()
		answer.WriteString(token)
	}

	// 客户端已断开，不写 done 也不记录本轮对话
	if ctx.Err() != nil {
		return
	}
	if err := enc.Encode(StreamEvent{Type: eventDone}); err != nil {
		log.Printf("Warning: failed to write done event: %v", err)
	}
	c.Writer.Flush()

	if req.SessionID != "" {
		recordCtx := context.WithoutCancel(ctx)
		if err := h.svc.Chat.RecordExchange(recordCtx, req.SessionID, req.Message, answer.String()); err != nil {
			log.Printf("Warning: failed to record exchange for session %s: %v", req.SessionID, err)
		}
	}
}

func toMessages(items []HistoryItem) []types.Message {
	msgs := make([]types.Message, 0, len(items))
	for _, item := range items {
		msgs = append(msgs, types.Message{Role: item.Role, Content: item.Content})
	}
	return msgs
}
