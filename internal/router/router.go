package router

import (
	"github.com/ashwinyue/rag-chat/internal/handler"
	"github.com/ashwinyue/rag-chat/internal/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())

	// 健康检查
	r.GET("/health", h.System.Health)

	api := r.Group("/api")
	{
		// Chat 流式问答
		api.POST("/chat/stream", h.Chat.Stream)

		// Session 聊天会话
		sessions := api.Group("/chat/sessions")
		{
			sessions.POST("", h.Session.CreateSession)
			sessions.GET("", h.Session.ListSessions)
			sessions.GET("/:id", h.Session.GetSession)
			sessions.PUT("/:id", h.Session.UpdateSession)
			sessions.DELETE("/:id", h.Session.DeleteSession)
			sessions.GET("/:id/messages", h.Session.GetMessages)
		}

		// File 文档
		files := api.Group("/files")
		{
			files.GET("", h.File.ListFiles)
			files.GET("/stats", h.File.GetStats)
			files.GET("/:id", h.File.GetFile)
			files.POST("", h.File.UploadFiles)
			files.PUT("/:id", h.File.ReplaceFile)
			files.DELETE("/:id", h.File.DeleteFile)
		}

		// Settings 模型设置
		st := api.Group("/settings")
		{
			st.GET("", h.Settings.GetSettings)
			st.PUT("", h.Settings.UpdateSettings)
			st.PUT("/api-keys/:provider", h.Settings.SaveAPIKey)
			st.DELETE("/api-keys/:provider", h.Settings.RemoveAPIKey)
			st.GET("/ollama-models", h.Settings.OllamaModels)
			st.GET("/provider-models/:provider", h.Settings.ProviderModels)
		}

		// System 系统
		api.GET("/system/info", h.System.GetSystemInfo)
	}

	return r
}
