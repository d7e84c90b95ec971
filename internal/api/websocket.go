package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"agrarkarte/internal/logger"
	"agrarkarte/internal/session"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	// 前端与 API 同源部署；跨源访问由反向代理控制
	CheckOrigin: func(r *http.Request) bool { return true },
}

// 文档注释：websocket 事件推送
// 背景：订阅会话事件并广播给所有连接；客户端消息只用于保持连接，内容被忽略。
// 约束：写入在 mu 下串行；写失败的连接立即移除。
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     *slog.Logger
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{}), log: logger.Component("ws")}
}

// Run：转发 broker 事件，直到 ctx 结束
func (h *Hub) Run(ctx context.Context, b *session.Broker) {
	events, cancel := b.Subscribe(256)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			msg, err := json.Marshal(e)
			if err != nil {
				h.log.Error("ws_encode_error", "type", e.Type, "err", err)
				continue
			}
			h.Broadcast(msg)
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws_upgrade_error", "err", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("ws_connect", "remote", r.RemoteAddr, "clients", n)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Debug("ws_disconnect", "remote", r.RemoteAddr, "err", err)
			break
		}
	}
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast：向所有连接发送文本消息
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("ws_write_error", "err", err)
			_ = c.Close()
			delete(h.clients, c)
		}
	}
}

// Clients：当前连接数
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		_ = c.Close()
		delete(h.clients, c)
	}
}
