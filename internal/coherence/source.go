package coherence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"seorocket/internal/realtime"
	"seorocket/pkg/log"

	"github.com/gorilla/websocket"
)

// Stream 是一次变更订阅。Events 在流结束（对端断开或 Close）后被关闭。
type Stream interface {
	Events() <-chan realtime.ChangeEvent
	Close() error
}

// Source 建立变更订阅
type Source interface {
	Subscribe(ctx context.Context, filters []realtime.Filter) (Stream, error)
}

// HubSource 直接订阅进程内的 Hub
type HubSource struct {
	hub    *realtime.Hub
	buffer int
}

func NewHubSource(hub *realtime.Hub, buffer int) *HubSource {
	return &HubSource{hub: hub, buffer: buffer}
}

func (s *HubSource) Subscribe(_ context.Context, filters []realtime.Filter) (Stream, error) {
	if s.hub == nil {
		return nil, errors.New("coherence: hub is nil")
	}
	return hubStream{sub: s.hub.Subscribe(s.buffer, filters...)}, nil
}

type hubStream struct {
	sub *realtime.Subscription
}

func (s hubStream) Events() <-chan realtime.ChangeEvent { return s.sub.C }

func (s hubStream) Close() error {
	s.sub.Close()
	return nil
}

// WebsocketSource 通过 /api/realtime 订阅远端实例，供独立的 Go 客户端使用。
type WebsocketSource struct {
	endpoint string
	header   http.Header
	dialer   *websocket.Dialer
}

// NewWebsocketSource endpoint 形如 ws://host:8080/api/realtime
func NewWebsocketSource(endpoint string, header http.Header) *WebsocketSource {
	return &WebsocketSource{endpoint: endpoint, header: header, dialer: websocket.DefaultDialer}
}

func (s *WebsocketSource) Subscribe(ctx context.Context, filters []realtime.Filter) (Stream, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("coherence: invalid endpoint %q: %w", s.endpoint, err)
	}
	q := u.Query()
	event := ""
	for _, f := range filters {
		if f.Table != "" && f.Table != string(realtime.EventAny) {
			q.Add("table", f.Table)
		}
		if f.Event != "" && f.Event != realtime.EventAny {
			event = string(f.Event)
		}
	}
	if event != "" {
		q.Set("event", event)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := s.dialer.DialContext(ctx, u.String(), s.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("coherence: dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("coherence: dial %s: %w", u.Redacted(), err)
	}

	st := &wsStream{conn: conn, ch: make(chan realtime.ChangeEvent, 64), done: make(chan struct{})}
	go st.readLoop()
	return st, nil
}

type wsStream struct {
	conn *websocket.Conn
	ch   chan realtime.ChangeEvent
	done chan struct{}
	once sync.Once
}

func (s *wsStream) Events() <-chan realtime.ChangeEvent { return s.ch }

// readLoop 由 gorilla 默认的 ping 处理器自动回 pong
func (s *wsStream) readLoop() {
	defer close(s.ch)
	for {
		var evt realtime.ChangeEvent
		if err := s.conn.ReadJSON(&evt); err != nil {
			select {
			case <-s.done:
			default:
				log.Warnf("coherence: websocket stream ended: %v", err)
			}
			return
		}
		select {
		case s.ch <- evt:
		case <-s.done:
			return
		}
	}
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline())
		err = s.conn.Close()
	})
	return err
}

func deadline() time.Time {
	return time.Now().Add(time.Second)
}
