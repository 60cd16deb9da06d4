package main

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Live channel event names.
const (
	eventLoadMessages = "load messages"
	eventChatMessage  = "chat message"
)

// Event is one frame on the live channel: {"event": name, "data": payload}.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

func newEvent(name string, payload any) (*Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return &Event{Name: name, Data: b}, nil
}

// chatPayload is the body of a chat message event in both directions.
type chatPayload struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

// EventSender defines the minimal interface the hub needs from a peer: the
// ability to queue an event for delivery, and to be shut down when it can
// no longer keep up.
type EventSender interface {
	Send(*Event) error
	Close()
}

// ConnectionHub tracks the live connections of this process. Chat messages
// are broadcast to every registered peer, not only to the participants.
type ConnectionHub struct {
	mu     sync.RWMutex
	peers  map[int64]EventSender
	nextID int64
}

// NewConnectionHub creates a new hub instance.
func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{peers: make(map[int64]EventSender)}
}

// Register adds a peer and returns the connection id to unregister it with.
func (h *ConnectionHub) Register(s EventSender) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.peers[id] = s
	return id
}

// Unregister removes a previously-registered peer. Unknown ids are ignored.
func (h *ConnectionHub) Unregister(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, id)
}

// Len returns the number of registered peers.
func (h *ConnectionHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Broadcast queues ev on every registered peer. Delivery is best effort:
// every peer is attempted, peers that fail are closed and unregistered, and
// the first error encountered is returned. A closed peer's client sees the
// connection end and reconnects, so it never stays connected while missing
// broadcasts.
func (h *ConnectionHub) Broadcast(ev *Event) error {
	// Snapshot under the read lock so a slow Send never blocks Register.
	h.mu.RLock()
	targets := make(map[int64]EventSender, len(h.peers))
	for id, p := range h.peers {
		targets[id] = p
	}
	h.mu.RUnlock()

	var firstErr error
	var failedIDs []int64
	for id, p := range targets {
		if err := p.Send(ev); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("peer %d: %w", id, err)
			}
			p.Close()
			failedIDs = append(failedIDs, id)
		}
	}

	for _, id := range failedIDs {
		h.Unregister(id)
	}
	return firstErr
}
