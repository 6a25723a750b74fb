package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"deptdesk/pkg/response"
)

// middleware.JWTAuth 写入的上下文键
const (
	CtxUserID   = "user_id"
	CtxName     = "name"
	CtxRole     = "role"
	CtxTokenJTI = "token_jti"
	CtxTokenExp = "token_exp"
)

// MustGetUserID 从上下文提取 JWT 中间件注入的 user_id
// 失败时写入 401 并返回 false，调用方应直接 return
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, CtxUserID)
}

// MustGetRole 从上下文提取 JWT 中间件注入的 role
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, CtxRole)
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "unauthenticated")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "unauthenticated")
		return "", false
	}
	return s, true
}

// tokenMeta 返回当前 Access Token 的 ID 与过期时间（若已知）
func tokenMeta(c *gin.Context) (string, time.Time) {
	jti := c.GetString(CtxTokenJTI)
	exp, _ := c.Get(CtxTokenExp)
	t, _ := exp.(time.Time)
	return jti, t
}
