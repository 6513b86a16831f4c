package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Feed pushes every newly appended prediction record to connected websocket
// clients. Delivery is best-effort: slow clients are dropped, and a full
// broadcast queue drops the message rather than blocking a request.
type Feed struct {
	clients    map[*feedClient]bool
	broadcast  chan []byte
	register   chan *feedClient
	unregister chan *feedClient
	done       chan struct{}
	upgrader   websocket.Upgrader
	log        *zap.Logger

	mu sync.Mutex
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewFeed(log *zap.Logger) *Feed {
	return &Feed{
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Run owns the client set; call it once in its own goroutine.
func (f *Feed) Run() {
	for {
		select {
		case client := <-f.register:
			f.mu.Lock()
			f.clients[client] = true
			f.mu.Unlock()

		case client := <-f.unregister:
			f.mu.Lock()
			if _, ok := f.clients[client]; ok {
				delete(f.clients, client)
				close(client.send)
			}
			f.mu.Unlock()

		case message := <-f.broadcast:
			f.mu.Lock()
			for client := range f.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(f.clients, client)
				}
			}
			f.mu.Unlock()

		case <-f.done:
			f.mu.Lock()
			for client := range f.clients {
				close(client.send)
				delete(f.clients, client)
			}
			f.mu.Unlock()
			return
		}
	}
}

func (f *Feed) Stop() { close(f.done) }

// BroadcastRecord fans a new prediction record out to every client.
func (f *Feed) BroadcastRecord(rec recordDTO) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":   "prediction",
		"record": rec,
	})
	if err != nil {
		f.log.Error("feed marshal failed", zap.Error(err))
		return
	}
	select {
	case f.broadcast <- payload:
	default:
		f.log.Warn("feed queue full, dropping record", zap.Int64("record_id", rec.ID))
	}
}

func (f *Feed) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &feedClient{conn: conn, send: make(chan []byte, 64)}
	f.register <- client

	go client.writePump()
	go client.readPump(f)
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pings are answered; the feed is one-way.
func (c *feedClient) readPump(f *Feed) {
	defer func() {
		f.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
