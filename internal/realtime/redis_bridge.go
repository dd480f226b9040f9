package realtime

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"seorocket/pkg/log"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultRedisChannel = "seorocket:changes"
	defaultOutboxSize   = 256
)

// RedisBridge 通过 Redis pub/sub 在多个实例之间转发变更事件：
// 本地发布的事件先进入 outbox，由后台 goroutine 写入频道，Hub.Publish 不等待 Redis；
// 其他实例发布的事件转入本地 Hub。
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	outbox  chan ChangeEvent
	dropped atomic.Int64
}

func NewRedisBridge(client *redis.Client, channel string, hub *Hub) *RedisBridge {
	return newRedisBridge(client, channel, hub, defaultOutboxSize)
}

func newRedisBridge(client *redis.Client, channel string, hub *Hub, outboxSize int) *RedisBridge {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBridge{
		client:  client,
		channel: channel,
		hub:     hub,
		outbox:  make(chan ChangeEvent, outboxSize),
	}
}

// Dropped 返回 outbox 满时未能转发的本地事件数
func (b *RedisBridge) Dropped() int64 {
	return b.dropped.Load()
}

// Start 订阅频道并阻塞转发，直到 ctx 结束。
func (b *RedisBridge) Start(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// 等待订阅确认，确保之后发布的事件不会丢
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	b.hub.OnPublish(func(evt ChangeEvent) { b.enqueue(evt) })
	go b.drain(ctx)
	log.Infof("realtime: redis bridge subscribed to %s", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handleMessage(msg.Payload)
		}
	}
}

// enqueue 非阻塞地放入 outbox，满了就丢弃并计数；其他实例靠轮询补齐
func (b *RedisBridge) enqueue(evt ChangeEvent) bool {
	select {
	case b.outbox <- evt:
		return true
	default:
		n := b.dropped.Add(1)
		log.Warnw("realtime: redis outbox full, event not forwarded",
			"table", evt.Table, "dropped", n)
		return false
	}
}

func (b *RedisBridge) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-b.outbox:
			b.forward(ctx, evt)
		}
	}
}

func (b *RedisBridge) forward(ctx context.Context, evt ChangeEvent) {
	if ctx.Err() != nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Error("realtime: failed to encode event", err)
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := b.client.Publish(pubCtx, b.channel, payload).Err(); err != nil {
		log.Warnf("realtime: failed to publish event to redis: %v", err)
	}
}

// handleMessage 解码远端事件并投递到本地，跳过本实例自己发出的事件。
func (b *RedisBridge) handleMessage(payload string) bool {
	var evt ChangeEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		log.Warnf("realtime: ignoring malformed redis payload: %v", err)
		return false
	}
	if evt.Origin == b.hub.Origin() {
		return false
	}
	b.hub.Deliver(evt)
	return true
}
