package interfaces

import (
	"context"
	"encoding/json"
	"github.com/ecom2122/ecom/internal/pkg/logger"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Alert 是推送给前端的告警，与 HTTP 告警头的内容一致
type Alert struct {
	Alert  string       `json:"alert"`
	Params string       `json:"params"`
	Event  domain.Event `json:"event"`
}

// AlertHub 维护所有活跃的 websocket 连接，把目录变更事件广播给前端
type AlertHub struct {
	app      string
	upgrader websocket.Upgrader
	clients  map[*alertClient]struct{}
	lock     sync.RWMutex
}

// alertClient 是一个 websocket 连接的代表
type alertClient struct {
	hub  *AlertHub
	conn *websocket.Conn
	send chan []byte
}

func NewAlertHub(app string) *AlertHub {
	return &AlertHub{
		app: app,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*alertClient]struct{}),
	}
}

func (h *AlertHub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/alerts", h.serveWs)
}

func (h *AlertHub) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &alertClient{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.lock.Lock()
	h.clients[client] = struct{}{}
	h.lock.Unlock()
	logger.Ctx(r.Context()).Debug().Str("remote", r.RemoteAddr).Msg("alert feed client connected")

	go client.writePump()
	go client.readPump()
}

func (h *AlertHub) unregister(c *alertClient) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *AlertHub) ClientCount() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// Publish 实现 domain.EventPublisher。发送缓冲已满的慢连接会被断开。
func (h *AlertHub) Publish(ctx context.Context, event domain.Event) error {
	msg, err := json.Marshal(Alert{
		Alert:  h.app + "." + event.Entity + "." + alertAction(event.Type),
		Params: strconv.FormatInt(event.EntityID, 10),
		Event:  event,
	})
	if err != nil {
		return errors.Wrap(err, "marshal alert")
	}

	var slow []*alertClient
	h.lock.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.lock.RUnlock()

	for _, c := range slow {
		logger.Ctx(ctx).Warn().Msg("dropping slow alert feed client")
		h.unregister(c)
	}
	return nil
}

// Close 断开所有连接
func (h *AlertHub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func alertAction(t domain.EventType) string {
	switch t {
	case domain.EventCreated:
		return "created"
	case domain.EventDeleted:
		return "deleted"
	default:
		return "updated"
	}
}

// writePump 负责把 send 中的消息写入 websocket，并定时发送心跳
func (c *alertClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理心跳，连接断开时注销客户端
func (c *alertClient) readPump() {
	defer c.hub.unregister(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
