package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"deptdesk/pkg/response"
)

// BodyLimit 请求体大小限制中间件
// 声明长度超限的请求直接拒绝；分块传输的请求体
// 在绑定时失败，由 handler 返回 400
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "request body too large")
			c.Abort()
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}

