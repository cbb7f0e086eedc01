package handler

import (
	"errors"
	"net/http"

	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/gin-gonic/gin"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse 仅包含提示文本的响应
type MessageResponse struct {
	Message string `json:"message"`
}

// Success 成功响应 (200)
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 创建成功响应 (201)
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent 无内容响应 (204)
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Message 提示文本响应 (200)
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageResponse{Message: msg})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: msg})
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Detail: msg})
}

// InternalServerError 500 错误响应
func InternalServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: msg})
}

// Error 根据错误类型返回相应的错误响应
func Error(c *gin.Context, err error) {
	if err == nil {
		return
	}
	c.JSON(statusOf(err), ErrorResponse{Detail: types.Detail(err)})
}

// statusOf 错误分类到 HTTP 状态码，ErrNotFound 优先
func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrIngestion),
		errors.Is(err, types.ErrSettings),
		errors.Is(err, types.ErrParse):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
