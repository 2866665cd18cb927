package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"ai-ragchat-be/internal/pkg/logger"
	"ai-ragchat-be/pkg/snapshot"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WatchAll is the subject of viewers that receive every snapshot.
const WatchAll = ""

const relayBuffer = 256

type relayMessage struct {
	Origin  string          `json:"origin"`
	Subject string          `json:"subject"`
	Message json.RawMessage `json:"message"`
}

// Hub pushes pipeline snapshots to websocket viewers. With Redis configured
// every update is also relayed to the other instances.
type Hub struct {
	clients  map[string][]*Client
	register chan *Client
	mu       sync.RWMutex

	rdb        *redis.Client
	channel    string
	instanceID string
	relay      chan relayMessage

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, channel string, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.NewString(),
		relay:      make(chan relayMessage, relayBuffer),
		logger:     log,
	}
}

// Start subscribes to the relay channel (when Redis is set) and runs the
// hub until ctx is done.
func (h *Hub) Start(ctx context.Context) error {
	if h.rdb != nil {
		pubsub := h.rdb.Subscribe(ctx, h.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return fmt.Errorf("subscribe %s: %w", h.channel, err)
		}
		go h.consumeRelay(ctx, pubsub)
		go h.publishRelay(ctx)
	}
	go h.run(ctx)
	return nil
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Subject] = append(h.clients[client.Subject], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Viewer registered", map[string]interface{}{"subject": client.Subject})

		case <-ctx.Done():
			h.mu.Lock()
			for subject, clients := range h.clients {
				for _, c := range clients {
					c.closeSend()
				}
				delete(h.clients, subject)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.Subject]
	for i, c := range clients {
		if c == client {
			h.clients[client.Subject] = append(clients[:i], clients[i+1:]...)
			client.closeSend()
			break
		}
	}
	if len(h.clients[client.Subject]) == 0 {
		delete(h.clients, client.Subject)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// SnapshotMessage is the frame viewers receive for one update.
func SnapshotMessage(snap snapshot.PipelineSnapshot) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type": "snapshot",
		"data": snap,
	})
}

// OnSnapshot matches snapshot.Observer. It never blocks: slow viewers and a
// full relay queue drop the update.
func (h *Hub) OnSnapshot(key string, snap snapshot.PipelineSnapshot) {
	data, err := SnapshotMessage(snap)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode snapshot", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliver(key, data)

	if h.rdb != nil {
		select {
		case h.relay <- relayMessage{Origin: h.instanceID, Subject: key, Message: data}:
		default:
			h.logger.Warn("Hub", "Relay queue full, dropping update", map[string]interface{}{"subject": key})
		}
	}
}

// deliver sends under the read lock; Send channels are only closed under
// the write lock.
func (h *Hub) deliver(subject string, data []byte) {
	var stale []*Client

	h.mu.RLock()
	targets := h.clients[subject]
	if subject != WatchAll {
		targets = append(append([]*Client{}, targets...), h.clients[WatchAll]...)
	}
	for _, client := range targets {
		select {
		case client.Send <- data:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Warn("Hub", "Viewer too slow, disconnecting", map[string]interface{}{"subject": client.Subject})
		h.remove(client)
	}
}

func (h *Hub) publishRelay(ctx context.Context) {
	for {
		select {
		case msg := <-h.relay:
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := h.rdb.Publish(ctx, h.channel, payload).Err(); err != nil {
				h.logger.Warn("Hub", "Relay publish failed", map[string]interface{}{"error": err.Error()})
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) consumeRelay(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Dropping malformed relay message", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}
			h.deliver(payload.Subject, payload.Message)
		case <-ctx.Done():
			return
		}
	}
}
