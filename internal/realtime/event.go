// Package realtime 提供表级变更通知：进程内分发（Hub）、跨实例转发（RedisBridge）
// 以及面向客户端的 websocket 推送。
package realtime

import (
	"encoding/json"
	"time"
)

// EventType 对应数据库行变更类型
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAny    EventType = "*"
)

const DefaultSchema = "public"

const (
	TableProducts    = "products"
	TableTags        = "tags"
	TableProductTags = "product_tags"
	TableBlogPosts   = "blog_posts"
)

// ChangeEvent 是一次行变更通知，New / Old 是变更前后的行 JSON。
// Origin 标记产生事件的实例，用于跨实例转发时去重。
type ChangeEvent struct {
	Schema string          `json:"schema"`
	Table  string          `json:"table"`
	Type   EventType       `json:"eventType"`
	New    json.RawMessage `json:"new,omitempty"`
	Old    json.RawMessage `json:"old,omitempty"`
	Origin string          `json:"origin,omitempty"`
	At     time.Time       `json:"at"`
}

// NewChangeEvent 构造一个 public schema 下的事件，行数据序列化失败时对应字段留空。
func NewChangeEvent(table string, typ EventType, newRow, oldRow interface{}) ChangeEvent {
	return ChangeEvent{
		Schema: DefaultSchema,
		Table:  table,
		Type:   typ,
		New:    marshalRow(newRow),
		Old:    marshalRow(oldRow),
		At:     time.Now(),
	}
}

func marshalRow(row interface{}) json.RawMessage {
	if row == nil {
		return nil
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil
	}
	return b
}

// Filter 限定订阅范围：{schema, table, event}，空值或 "*" 表示不限。
type Filter struct {
	Schema string    `json:"schema"`
	Table  string    `json:"table"`
	Event  EventType `json:"event"`
}

// TableFilter 订阅 public schema 下某张表的全部事件
func TableFilter(table string) Filter {
	return Filter{Schema: DefaultSchema, Table: table, Event: EventAny}
}

func (f Filter) Matches(evt ChangeEvent) bool {
	if f.Schema != "" && f.Schema != "*" && f.Schema != evt.Schema {
		return false
	}
	if f.Table != "" && f.Table != "*" && f.Table != evt.Table {
		return false
	}
	if f.Event != "" && f.Event != EventAny && f.Event != evt.Type {
		return false
	}
	return true
}

func matchesAny(filters []Filter, evt ChangeEvent) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Matches(evt) {
			return true
		}
	}
	return false
}

// Publisher 是写路径依赖的最小接口，service 层只需要发布事件。
type Publisher interface {
	Publish(evt ChangeEvent)
}
