// Package hub is the broadcast fan-out: it tracks which connections are
// subscribed to which room and pushes serialized events to them. Delivery is
// fire-and-forget; a subscriber that cannot keep up is dropped rather than
// allowed to block anyone else.
package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/roamingroutes/undercover-backend/pkg/types"
)

// Subscriber is one connection's outbox. The channel returned by Out is
// drained by the connection's writer goroutine and closed when the subscriber
// is dropped. All sends and the close go through one mutex, so a send racing
// a drop can never hit a closed channel.
type Subscriber struct {
	ID string

	mu     sync.Mutex
	out    chan []byte
	closed bool
}

func NewSubscriber(id string, buffer int) *Subscriber {
	return &Subscriber{ID: id, out: make(chan []byte, buffer)}
}

// Out returns the channel the writer goroutine drains.
func (s *Subscriber) Out() <-chan []byte { return s.out }

// TrySend queues data without blocking. It reports false when the outbox is
// full or the subscriber has already been closed.
func (s *Subscriber) TrySend(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- data:
		return true
	default:
		return false
	}
}

// Close shuts the outbox. Idempotent; safe to call concurrently with TrySend.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscriber]struct{}
	global map[*Subscriber]struct{}
	logger *zap.Logger
}

func New(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Subscriber]struct{}),
		global: make(map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Register adds a subscriber to the global group, which receives lobby-wide
// events (GameCreated, GameUpdated).
func (h *Hub) Register(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.global[sub] = struct{}{}
}

// Subscribe adds a subscriber to a room's broadcast group. Idempotent.
func (h *Hub) Subscribe(roomID string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.rooms[roomID]
	if !ok {
		group = make(map[*Subscriber]struct{})
		h.rooms[roomID] = group
	}
	group[sub] = struct{}{}
}

// Unsubscribe removes a subscriber from a room's group. Idempotent.
func (h *Hub) Unsubscribe(roomID string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(roomID, sub)
}

// Drop removes a subscriber everywhere and closes its outbox. Called on
// disconnect, graceful or not.
func (h *Hub) Drop(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.global, sub)
	for roomID := range h.rooms {
		h.removeFromRoom(roomID, sub)
	}
	sub.Close()
}

func (h *Hub) removeFromRoom(roomID string, sub *Subscriber) {
	group, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(group, sub)
	if len(group) == 0 {
		delete(h.rooms, roomID)
	}
}

// Publish delivers an event to every subscriber of one room.
func (h *Hub) Publish(roomID, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.rooms[roomID] {
		h.send(sub, data)
	}
}

// PublishAll delivers an event to every registered connection, regardless of
// room subscription.
func (h *Hub) PublishAll(event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.global {
		h.send(sub, data)
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal event payload", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	data, err := json.Marshal(types.ServerMessage{Event: event, Payload: raw})
	if err != nil {
		h.logger.Error("marshal event envelope", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return data, true
}

// send must run with h.mu held. A full outbox means the subscriber stopped
// draining; drop it so the rest of the group keeps receiving.
func (h *Hub) send(sub *Subscriber, data []byte) {
	if sub.TrySend(data) {
		return
	}
	h.logger.Warn("dropping slow subscriber", zap.String("subscriber", sub.ID))
	delete(h.global, sub)
	for roomID := range h.rooms {
		h.removeFromRoom(roomID, sub)
	}
	sub.Close()
}
