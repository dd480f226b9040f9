package realtime

import (
	"net/http"
	"strings"
	"time"

	"seorocket/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebsocketHandler 把 Hub 上的事件推送给 websocket 客户端。
// 订阅范围由 query 参数指定：?table=products&table=tags&event=UPDATE，缺省为 products + tags。
type WebsocketHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWebsocketHandler(hub *Hub, allowedOrigins []string) *WebsocketHandler {
	return &WebsocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// FiltersFromQuery 解析订阅范围
func FiltersFromQuery(tables []string, event string) []Filter {
	if len(tables) == 0 {
		tables = []string{TableProducts, TableTags}
	}
	evt := EventType(strings.ToUpper(strings.TrimSpace(event)))
	if evt == "" {
		evt = EventAny
	}
	filters := make([]Filter, 0, len(tables))
	for _, table := range tables {
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		filters = append(filters, Filter{Schema: DefaultSchema, Table: table, Event: evt})
	}
	return filters
}

// Serve 升级连接并持续推送事件，直到客户端断开。
func (h *WebsocketHandler) Serve(c *gin.Context) {
	filters := FiltersFromQuery(c.QueryArray("table"), c.Query("event"))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("realtime: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(defaultBuffer, filters...)
	defer sub.Close()

	// 读循环只负责处理 pong 与检测断开
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case evt, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				log.Debugf("realtime: websocket write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
