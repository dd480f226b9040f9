package handler

import (
	"context"
	"errors"
	"net/http"

	"seorocket/internal/coherence"
	"seorocket/internal/legacy"
	"seorocket/internal/search"
	"seorocket/internal/service"
	"seorocket/pkg/log"
	"seorocket/pkg/token"

	"github.com/gin-gonic/gin"
)

// mapServiceError 把 Service 层哨兵错误转换为 HTTP 状态码和对外消息。
// Handler 不直接判断 gorm 错误，对外返回口径保持稳定。
func mapServiceError(err error) (httpStatus int, message string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request parameters"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, service.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, service.ErrTagNotFound):
		return http.StatusNotFound, "Tag not found"
	case errors.Is(err, service.ErrPostNotFound):
		return http.StatusNotFound, "Blog post not found"
	case errors.Is(err, service.ErrSlugTaken):
		return http.StatusConflict, "Slug already in use"
	case errors.Is(err, service.ErrTagAlreadyExists):
		return http.StatusConflict, "Tag already exists"
	case errors.Is(err, service.ErrReservedTagName):
		return http.StatusBadRequest, "Tag name is reserved for a system filter"
	case errors.Is(err, service.ErrUnknownFilter):
		return http.StatusBadRequest, "Unknown system filter"
	case errors.Is(err, service.ErrNotConfigured), errors.Is(err, legacy.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Database not configured"
	case errors.Is(err, search.ErrDisabled):
		return http.StatusServiceUnavailable, "Search is disabled"
	case errors.Is(err, service.ErrReorderFailed):
		return http.StatusInternalServerError, "Reorder failed"
	case errors.Is(err, service.ErrMembershipFailed):
		return http.StatusInternalServerError, "Membership update failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// writeServiceError 记录日志并按 mapServiceError 写出错误响应
func writeServiceError(c *gin.Context, op string, err error) {
	status, msg := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s: %v", op, err)
	} else {
		log.Warnf("%s: %v", op, err)
	}
	c.JSON(status, gin.H{
		"code":    status,
		"message": msg,
	})
}

func writeBadRequest(c *gin.Context, op string, err error) {
	log.Warnf("%s: failed to bind request: %v", op, err)
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    http.StatusBadRequest,
		"message": "Invalid request body",
	})
}

func writeOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": message,
		"data":    data,
	})
}

// sessionFromContext 读取 OptionalAuth / AdminAuth 注入的会话
func sessionFromContext(c *gin.Context) (*token.SessionClaims, bool) {
	v, exists := c.Get("claims")
	if !exists {
		return nil, false
	}
	claims, ok := v.(*token.SessionClaims)
	return claims, ok && claims != nil
}

// isAdmin 有会话即为后台请求，可以看到未发布的内容
func isAdmin(c *gin.Context) bool {
	_, ok := sessionFromContext(c)
	return ok
}

// runReorder 在视图上先做乐观重排再写入；view 为 nil 时直接写入。
// 返回写入失败的原因，成功时为 nil。
func runReorder(ctx context.Context, view *coherence.View, filter string, keys []string, write func(ctx context.Context) error) error {
	var writeErr error
	fn := func(ctx context.Context) bool {
		writeErr = write(ctx)
		return writeErr == nil
	}
	if view == nil {
		fn(ctx)
		return writeErr
	}
	state, err := view.BeginReorder(filter).Run(ctx, keys, fn)
	if state == coherence.ReorderRolledBack && err != nil {
		log.Warnf("reorder %q rolled back, view reload failed: %v", filter, err)
	}
	return writeErr
}
