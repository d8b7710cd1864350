package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"resonance-field-be/internal/constant"
	"resonance-field-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hub tracks one client per live session id and fans event frames out to
// them, locally and across instances through Redis.
type Hub struct {
	// Registered clients map: SessionID -> Client (one tab, one session)
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fanout
	rdb *redis.Client

	// Identifies this instance so its own Redis messages are skipped.
	instanceId string

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionId] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionId})

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.SessionId]; ok && current == client {
				delete(h.clients, client.SessionId)
				close(client.Send)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"session_id": client.SessionId})
			}
			h.mu.Unlock()
		}
	}
}

// fanoutPayload is the cross-instance envelope on the Redis channel.
type fanoutPayload struct {
	Instance string          `json:"instance"`
	Target   string          `json:"target"` // "*" for broadcast
	Exclude  string          `json:"exclude,omitempty"`
	Frame    json.RawMessage `json:"frame"`
}

// Broadcast sends a frame to every local client except the excluded
// session, then publishes to Redis so other instances do the same.
func (h *Hub) Broadcast(excludeSessionId string, frame []byte) {
	h.deliverBroadcast(excludeSessionId, frame)

	if h.rdb != nil {
		payload, _ := json.Marshal(fanoutPayload{
			Instance: h.instanceId,
			Target:   "*",
			Exclude:  excludeSessionId,
			Frame:    frame,
		})
		h.rdb.Publish(context.Background(), constant.RedisFieldEventsChannel, payload)
	}
}

// Send delivers a frame to one session's connection. The session may live
// on another instance; Redis carries it there.
func (h *Hub) Send(sessionId string, frame []byte) {
	h.deliverTo(sessionId, frame)

	if h.rdb != nil {
		payload, _ := json.Marshal(fanoutPayload{
			Instance: h.instanceId,
			Target:   sessionId,
			Frame:    frame,
		})
		h.rdb.Publish(context.Background(), constant.RedisFieldEventsChannel, payload)
	}
}

func (h *Hub) deliverBroadcast(excludeSessionId string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sessionId, client := range h.clients {
		if sessionId == excludeSessionId {
			continue
		}
		h.push(client, frame)
	}
}

func (h *Hub) deliverTo(sessionId string, frame []byte) {
	// Push under the read lock: unregister closes Send under the write
	// lock, so a held read lock keeps the channel open.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[sessionId]; ok {
		h.push(client, frame)
	}
}

func (h *Hub) push(client *Client, frame []byte) {
	select {
	case client.Send <- frame:
	default:
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"session_id": client.SessionId})
		go func() { h.unregister <- client }()
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, constant.RedisFieldEventsChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload fanoutPayload
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}
		// Already delivered locally before publishing.
		if payload.Instance == h.instanceId {
			continue
		}

		if payload.Target == "*" {
			h.deliverBroadcast(payload.Exclude, payload.Frame)
			continue
		}
		h.deliverTo(payload.Target, payload.Frame)
	}
}
