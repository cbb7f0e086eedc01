package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware 日志中间件
// 流式接口的耗时包含整段回答的输出时间
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			path += "?" + query
		}

		c.Next()

		log.Printf("[%s] %s | Status: %d | Size: %d | Latency: %v",
			c.Request.Method,
			path,
			c.Writer.Status(),
			c.Writer.Size(),
			time.Since(start),
		)
		for _, e := range c.Errors {
			log.Printf("Warning: %s %s: %v", c.Request.Method, path, e.Err)
		}
	}
}
