package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"seorocket/pkg/log"

	"github.com/gin-gonic/gin"
)

// maxLoggedBody 请求 / 响应体在日志中最多保留的字节数
const maxLoggedBody = 2048

// BodyLogWriter 用于记录响应的body
type BodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 同时写入 gin.ResponseWriter 和内部 buffer，buffer 超过上限后不再追加
func (w *BodyLogWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody - w.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		w.body.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}

// RequestLogger 记录每个请求的耗时、状态码和请求 / 响应体。
// redactPaths 中的路径（如登录）不记录请求体，非 JSON 响应（如 xlsx 导出）不记录响应体。
func RequestLogger(redactPaths ...string) gin.HandlerFunc {
	redacted := make(map[string]struct{}, len(redactPaths))
	for _, p := range redactPaths {
		redacted[p] = struct{}{}
	}

	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path

		var requestBody []byte
		if _, skip := redacted[path]; !skip && c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			// 放回 Body，后续 handler 还要读取
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		blw := &BodyLogWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = blw

		c.Next()

		responseBody := ""
		if strings.HasPrefix(blw.Header().Get("Content-Type"), "application/json") {
			responseBody = blw.body.String()
		}
		if len(requestBody) > maxLoggedBody {
			requestBody = requestBody[:maxLoggedBody]
		}

		log.Infow("HTTP request",
			"latency", time.Since(startTime),
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"request_body", string(requestBody),
			"response_body", responseBody,
		)
	}
}
