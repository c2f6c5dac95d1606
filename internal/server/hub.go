package server

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/winforge/internal/logging"
)

// reloadMessage is the payload the report page script listens for.
const reloadMessage = "reload"

// wsClient is one connected report page.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub manages WebSocket connections for live reload. A single goroutine owns
// registration, unregistration, and broadcasting; handlers communicate with
// it over buffered channels so HTTP requests never block on slow clients.
type Hub struct {
	clients   map[*websocket.Conn]*wsClient
	clientsMu sync.RWMutex

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn

	allowedOrigins []string
	logger         logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
}

// NewHub creates a hub and starts its goroutine. An empty origin list
// restricts connections to loopback origins.
func NewHub(allowedOrigins []string, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:        make(map[*websocket.Conn]*wsClient),
		broadcast:      make(chan []byte, 256),
		register:       make(chan *wsClient, 32),
		unregister:     make(chan *websocket.Conn, 32),
		allowedOrigins: allowedOrigins,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
	}

	go h.run()

	return h
}

// HandleWebSocket upgrades the request and registers the client for
// broadcasts.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if origin != "" && !h.isAllowedOrigin(origin) {
		h.logger.Warn(r.Context(), nil, "websocket connection rejected",
			"origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin is validated above against the configured list.
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go h.handleClient(client)
}

// isAllowedOrigin checks the Origin header value against the configured
// list, or against loopback hosts when no list is configured.
func (h *Hub) isAllowedOrigin(origin string) bool {
	if len(h.allowedOrigins) > 0 {
		for _, allowed := range h.allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case conn := <-h.unregister:
			h.unregisterClient(conn)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) registerClient(client *wsClient) {
	h.clientsMu.Lock()
	h.clients[client.conn] = client
	total := len(h.clients)
	h.clientsMu.Unlock()

	h.logger.Debug(context.Background(), "websocket client connected", "total", total)
}

func (h *Hub) unregisterClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	client, exists := h.clients[conn]
	if exists {
		delete(h.clients, conn)
		close(client.send)
	}
	total := len(h.clients)
	h.clientsMu.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debug(context.Background(), "websocket client disconnected", "total", total)
	}
}

func (h *Hub) broadcastToClients(message []byte) {
	h.clientsMu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			// Send buffer full, drop the client.
			go func(c *wsClient) {
				select {
				case h.unregister <- c.conn:
				case <-h.ctx.Done():
				}
			}(client)
		}
	}
}

func (h *Hub) handleClient(client *wsClient) {
	defer func() {
		select {
		case h.unregister <- client.conn:
		case <-h.ctx.Done():
		}
	}()

	go h.writePump(client)
	h.readPump(client)
}

// readPump drains the connection. Report pages never send meaningful data;
// reading only surfaces disconnects and keeps control frames flowing.
func (h *Hub) readPump(client *wsClient) {
	for {
		if _, _, err := client.conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Broadcast queues a raw message for every connected client. Messages are
// dropped rather than blocking when the hub is saturated or shut down.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.ctx.Done():
	default:
	}
}

// BroadcastReload tells every open report page to refresh itself.
func (h *Hub) BroadcastReload() {
	h.Broadcast([]byte(reloadMessage))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection and stops the hub goroutine. Send
// channels are left to the garbage collector; only the hub goroutine closes
// them, and it is already stopping.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.isShutdown.Store(true)
		h.cancel()

		h.clientsMu.Lock()
		for conn := range h.clients {
			_ = conn.Close(websocket.StatusNormalClosure, "server shutdown")
		}
		h.clients = make(map[*websocket.Conn]*wsClient)
		h.clientsMu.Unlock()
	})

	return nil
}
