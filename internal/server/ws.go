package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/lotwatch/internal/status"
)

// liveInterval caps pushes to about 15 per second.
const liveInterval = 66 * time.Millisecond

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LiveHandler pushes dashboard snapshots to WebSocket clients whenever the board changes.
type LiveHandler struct {
	board   *status.Board
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	stopCh  chan struct{}
	once    sync.Once
}

// NewLiveHandler creates a LiveHandler and starts its broadcast loop.
func NewLiveHandler(board *status.Board) *LiveHandler {
	h := &LiveHandler{
		board:   board,
		clients: make(map[*websocket.Conn]bool),
		stopCh:  make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests. The current snapshot is sent immediately.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	msg, err := json.Marshal(h.board.Current())
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *LiveHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcast loop and disconnects all clients.
func (h *LiveHandler) Close() {
	h.once.Do(func() {
		close(h.stopCh)
		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
		}
		h.mu.Unlock()
	})
}

func (h *LiveHandler) broadcast() {
	ticker := time.NewTicker(liveInterval)
	defer ticker.Stop()

	for {
		changed := h.board.Changed()
		select {
		case <-h.stopCh:
			return
		case <-changed:
		}

		// Coalesce bursts of updates into one push per interval.
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}
		h.mu.RUnlock()

		msg, err := json.Marshal(h.board.Current())
		if err != nil {
			continue
		}

		h.mu.Lock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Msg("live write")
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}
