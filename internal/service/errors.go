package service

import (
	"errors"

	"seorocket/internal/realtime"
)

// 哨兵错误：对外统一语义，隐藏底层 gorm 细节
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal server error")
	ErrNotConfigured      = errors.New("database not configured")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrSlugTaken          = errors.New("slug already in use")
	ErrTagNotFound        = errors.New("tag not found")
	ErrTagAlreadyExists   = errors.New("tag already exists")
	ErrReservedTagName    = errors.New("tag name is reserved for a system filter")
	ErrUnknownFilter      = errors.New("unknown system filter")
	ErrReorderFailed      = errors.New("reorder failed")
	ErrMembershipFailed   = errors.New("membership update failed")
	ErrPostNotFound       = errors.New("blog post not found")
)

// publish 在 publisher 为 nil 时什么也不做
func publish(p realtime.Publisher, table string, typ realtime.EventType, newRow, oldRow interface{}) {
	if p == nil {
		return
	}
	p.Publish(realtime.NewChangeEvent(table, typ, newRow, oldRow))
}
