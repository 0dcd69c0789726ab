package httpgin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	redisx "github.com/kirinyoku/washq/internal/redis"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsSendBuffer = 32
)

type SlotFeed interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, msg redisx.SlotChanged)) error
}

type wsClient struct {
	date string
	send chan []byte
}

// Hub fans slot-changed events out to websocket clients. Clients may
// subscribe to a single date with ?date=YYYY-MM-DD.
type Hub struct {
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:     log.With(slog.String("component", "ws")),
		clients: make(map[*wsClient]struct{}),
	}
}

// Run forwards feed events until ctx is done, resubscribing after feed
// errors.
func (h *Hub) Run(ctx context.Context, feed SlotFeed) error {
	for {
		err := feed.Subscribe(ctx, func(_ context.Context, msg redisx.SlotChanged) {
			h.Broadcast(msg)
		})
		if ctx.Err() != nil {
			return nil
		}

		h.log.Warn("slot feed interrupted", slog.Any("error", err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (h *Hub) Broadcast(msg redisx.SlotChanged) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if c.date != "" && c.date != msg.Date {
			continue
		}
		select {
		case c.send <- b:
		default:
			// Slow consumer; its writer sees the closed channel and hangs up.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// @Summary  Live slot changes
// @Param    date  query  string  false  "only events for this date"
// @Router   /ws/availability [get]
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("upgrade failed", slog.Any("error", err))
		return
	}

	client := &wsClient{date: c.Query("date"), send: make(chan []byte, wsSendBuffer)}
	h.register(client)

	go h.writeLoop(conn, client)
	h.readLoop(conn, client)
}

// readLoop only drains control frames; clients never send data.
func (h *Hub) readLoop(conn *websocket.Conn, c *wsClient) {
	defer func() {
		h.unregister(c)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
