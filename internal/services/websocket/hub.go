package websocket

import (
	"context"
	"sync"
	"time"

	"droneaid/internal/logger"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// HubService fans detection results out to connected viewers.
type HubService struct {
	clients    map[*websocket.Conn]string
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]string),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves register, unregister and broadcast requests until ctx is done,
// then closes every viewer connection. Run must be called at most once.
func (h *HubService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			id := newClientID()
			h.mutex.Lock()
			h.clients[client] = id
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer %s connected. Total: %d", id, total)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mutex.RLock()
			var failed []*websocket.Conn
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					failed = append(failed, client)
				}
			}
			h.mutex.RUnlock()
			for _, client := range failed {
				h.remove(client)
			}
		}
	}
}

func (h *HubService) remove(client *websocket.Conn) {
	h.mutex.Lock()
	id, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.Close()
	}
	total := len(h.clients)
	h.mutex.Unlock()
	if ok {
		h.logger.Info("Viewer %s disconnected. Total: %d", id, total)
	}
}

func newClientID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return "unknown"
	}
	return id.String()
}

// Register adds a viewer. After shutdown the connection is closed instead.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		if client != nil {
			client.Close()
		}
	}
}

// Unregister removes a viewer. It returns immediately once the hub stopped.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Done is closed when Run returns.
func (h *HubService) Done() <-chan struct{} {
	return h.done
}

// Broadcast queues message for every viewer. When the queue is full the
// message is dropped so a slow viewer never blocks detection.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		h.logger.Warning("Broadcast queue full, dropping message")
		return false
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
