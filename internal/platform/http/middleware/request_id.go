// Package middleware はプラットフォーム共通のGinミドルウェアを提供します。
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID はリクエストIDを伝搬するヘッダーです。
	HeaderRequestID = "X-Request-ID"
	// ContextRequestID はgin.Contextに保存するリクエストIDのキーです。
	ContextRequestID = "requestID"

	maxRequestIDLen = 128
)

// RequestID はリクエストIDを付与し、1リクエストにつき1行のアクセスログを出力します。
// クライアントが送ったX-Request-IDは128文字以下であればそのまま使います。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)

		c.Next()

		slog.Info("request completed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"remote_addr", c.ClientIP(),
			"request_id", id,
		)
	}
}

// GetRequestID はgin.Contextに保存されたリクエストIDを返します。
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}
