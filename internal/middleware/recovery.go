package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// RecoveryMiddleware 恢复中间件
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic recovered: %v\n%s", err, debug.Stack())
				// 流式响应已写出状态码时只能中断
				if !c.Writer.Written() {
					c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
