package realtime

import (
	"sync"
	"sync/atomic"

	"seorocket/pkg/log"

	"github.com/google/uuid"
)

const defaultBuffer = 64

// Hub 是进程内的变更事件分发器。
// 发送是非阻塞的：订阅者消费过慢时事件被丢弃并计数，不会拖慢写路径。
type Hub struct {
	origin string

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	hooksMu sync.RWMutex
	hooks   []func(ChangeEvent)
}

func NewHub() *Hub {
	return &Hub{
		origin: uuid.NewString(),
		subs:   make(map[uint64]*Subscription),
	}
}

// Origin 返回本实例标识
func (h *Hub) Origin() string {
	return h.origin
}

// Subscription 是一个订阅句柄，C 在 Close 或 Hub 关闭后被关闭。
type Subscription struct {
	C <-chan ChangeEvent

	ch      chan ChangeEvent
	filters []Filter
	hub     *Hub
	id      uint64
	once    sync.Once
	dropped atomic.Int64
}

// Subscribe 注册订阅。buffer <= 0 时使用默认缓冲。不传 filters 表示接收全部事件。
func (h *Hub) Subscribe(buffer int, filters ...Filter) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan ChangeEvent, buffer)
	sub := &Subscription{C: ch, ch: ch, filters: filters, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		sub.once.Do(func() {})
		return sub
	}
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	return sub
}

// Close 取消订阅，可重复调用
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Dropped 返回因缓冲区满而丢弃的事件数
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// OnPublish 注册本地发布钩子（例如转发到 Redis），远端转入的事件不会触发钩子。
func (h *Hub) OnPublish(fn func(ChangeEvent)) {
	h.hooksMu.Lock()
	h.hooks = append(h.hooks, fn)
	h.hooksMu.Unlock()
}

// Publish 发布本实例产生的事件：先本地分发，再交给钩子。
func (h *Hub) Publish(evt ChangeEvent) {
	if evt.Schema == "" {
		evt.Schema = DefaultSchema
	}
	if evt.Origin == "" {
		evt.Origin = h.origin
	}
	h.Deliver(evt)

	h.hooksMu.RLock()
	hooks := h.hooks
	h.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(evt)
	}
}

// Deliver 只做本地分发
func (h *Hub) Deliver(evt ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	for _, sub := range h.subs {
		if !matchesAny(sub.filters, evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			n := sub.dropped.Add(1)
			log.Warnw("realtime: dropped event for slow subscriber",
				"subscription", sub.id, "table", evt.Table, "dropped", n)
		}
	}
}

// Close 关闭 Hub 与全部订阅
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
