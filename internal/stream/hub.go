package stream

import (
	"sync"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/pkg/logger"
)

// subscriberBuffer is the per-subscriber channel capacity. A slow
// consumer loses events rather than stalling the scheduler.
const subscriberBuffer = 64

// Hub routes events to subscribers by client id. All methods are safe
// for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]chan Event),
	}
}

// Attach registers a subscriber and returns its event channel. A second
// attach for the same client id replaces the first one and closes its
// channel, so a reconnecting client never leaves a stale subscription
// behind.
func (h *Hub) Attach(clientID string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.subscribers[clientID]; ok {
		close(old)
	}
	ch := make(chan Event, subscriberBuffer)
	h.subscribers[clientID] = ch

	logger.Debug("stream subscriber attached", zap.String("client_id", clientID))
	return ch
}

// Detach removes a subscriber and closes its channel. Detaching an
// unknown client id is a no-op.
func (h *Hub) Detach(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[clientID]; ok {
		close(ch)
		delete(h.subscribers, clientID)
		logger.Debug("stream subscriber detached", zap.String("client_id", clientID))
	}
}

// DetachChannel removes a subscriber only while ch is still its
// registered channel. A connection that was replaced by a reconnect
// must not tear down its successor's subscription.
func (h *Hub) DetachChannel(clientID string, ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.subscribers[clientID]
	if !ok || (<-chan Event)(current) != ch {
		return
	}
	close(current)
	delete(h.subscribers, clientID)
	logger.Debug("stream subscriber detached", zap.String("client_id", clientID))
}

// Send delivers an event to one subscriber without blocking. Events to
// unknown subscribers or over a full buffer are dropped; the return
// value reports delivery.
func (h *Hub) Send(clientID string, ev Event) bool {
	h.mu.RLock()
	ch, ok := h.subscribers[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case ch <- ev:
		return true
	default:
		logger.Warn("stream event dropped, subscriber buffer full",
			zap.String("client_id", clientID),
			zap.String("type", string(ev.Type)),
		)
		return false
	}
}

// Broadcast delivers an event to every subscriber, dropping per
// subscriber on full buffers
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for clientID, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			logger.Warn("stream event dropped, subscriber buffer full",
				zap.String("client_id", clientID),
				zap.String("type", string(ev.Type)),
			)
		}
	}
}

// Subscribers returns the number of attached subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
