// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package message

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 100

// Hub is a Sink that fans messages out to subscribed user connections.
// A user may hold several subscriptions (one per connection).
type Hub struct {
	rooms  Occupants
	buffer int

	mu   sync.RWMutex
	subs map[string][]chan Message
}

// Compile-time interface check.
var _ Sink = (*Hub)(nil)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the channel capacity of new subscriptions.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewHub creates a hub resolving room membership through rooms.
func NewHub(rooms Occupants, opts ...HubOption) *Hub {
	h := &Hub{
		rooms:  rooms,
		buffer: DefaultBuffer,
		subs:   make(map[string][]chan Message),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe opens a delivery channel for userID.
func (h *Hub) Subscribe(userID string) <-chan Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Message, h.buffer)
	h.subs[userID] = append(h.subs[userID], ch)
	return ch
}

// Unsubscribe closes and removes a channel returned by Subscribe.
func (h *Hub) Unsubscribe(userID string, ch <-chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[userID]
	for i, sub := range subs {
		if sub == ch {
			h.subs[userID] = append(subs[:i], subs[i+1:]...)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(sub)
			return
		}
	}
}

// Connected reports whether userID has at least one subscription.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID]) > 0
}

// SendToUser implements Sink.
func (h *Hub) SendToUser(userID, text string) {
	msg := Message{Kind: KindUser, Target: userID, Text: text, Timestamp: time.Now()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliverLocked(userID, msg)
}

// SendToRoom implements Sink. The first exclude entry, if any, is recorded on
// the message; every listed user is skipped.
func (h *Hub) SendToRoom(roomID, text string, exclude ...string) {
	msg := Message{Kind: KindRoom, Target: roomID, Text: text, Timestamp: time.Now()}
	if len(exclude) > 0 {
		msg.Exclude = exclude[0]
	}

	var occupants []string
	if h.rooms != nil {
		occupants = h.rooms.Occupants(roomID)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range occupants {
		if excluded(userID, exclude) {
			continue
		}
		h.deliverLocked(userID, msg)
	}
}

// deliverLocked must be called with mu held for reading.
func (h *Hub) deliverLocked(userID string, msg Message) {
	subs := h.subs[userID]
	if len(subs) == 0 {
		RecordDrop(DropOffline)
		return
	}
	for _, ch := range subs {
		select {
		case ch <- msg:
			RecordDelivery(msg.Kind)
		default:
			RecordDrop(DropBackpressure)
			slog.Warn("message dropped: subscriber buffer full",
				"user_id", userID,
				"kind", msg.Kind.String(),
				"target", msg.Target)
		}
	}
}

func excluded(userID string, exclude []string) bool {
	for _, e := range exclude {
		if e != "" && e == userID {
			return true
		}
	}
	return false
}
