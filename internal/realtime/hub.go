// Package realtime is the push side of the backend: subscribers register
// interest in one conversation and receive every message inserted into it.
package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/store"
)

// DefaultBuffer is the per-subscription queue length used when none is configured.
const DefaultBuffer = 32

// Subscription is a live channel of inserts for one conversation.
type Subscription struct {
	conversationID string
	events         chan store.Message
	hub            *Hub
	once           sync.Once
}

// ConversationID returns the conversation this subscription is scoped to.
func (s *Subscription) ConversationID() string {
	return s.conversationID
}

// Events delivers inserted messages. It is closed once the subscription is closed.
func (s *Subscription) Events() <-chan store.Message {
	return s.events
}

// Close detaches the subscription from the hub. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
	return nil
}

// Hub fans inserted messages out to the subscriptions of their conversation.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topic
	buffer int
	log    *zerolog.Logger
}

// NewHub creates an empty hub. buffer <= 0 selects DefaultBuffer.
func NewHub(buffer int, logger *zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		topics: make(map[string]*topic),
		buffer: buffer,
		log:    logger,
	}
}

// Subscribe opens a subscription for inserts into conversationID.
func (h *Hub) Subscribe(conversationID string) *Subscription {
	sub := &Subscription{
		conversationID: conversationID,
		events:         make(chan store.Message, h.buffer),
		hub:            h,
	}

	h.mu.Lock()
	t, ok := h.topics[conversationID]
	if !ok {
		t = newTopic(conversationID)
		h.topics[conversationID] = t
	}
	t.add(sub)
	h.mu.Unlock()

	h.log.Debug().Str("conversation_id", conversationID).Msg("subscription opened")
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[sub.conversationID]
	if ok && t.remove(sub) {
		if t.empty() {
			delete(h.topics, sub.conversationID)
		}
	}
	// Closed under the write lock so Publish never sends on a closed channel.
	close(sub.events)

	h.log.Debug().Str("conversation_id", sub.conversationID).Msg("subscription closed")
}

// Publish delivers msg to every subscription of its conversation and
// returns the number of subscriptions that accepted it.
func (h *Hub) Publish(msg store.Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	t, ok := h.topics[msg.ConversationID]
	if !ok {
		return 0
	}
	delivered, dropped := t.broadcast(msg)
	if dropped > 0 {
		h.log.Warn().
			Str("conversation_id", msg.ConversationID).
			Int64("message_id", msg.ID).
			Int("dropped", dropped).
			Msg("slow subscribers dropped insert")
	}
	return delivered
}

// Count returns the number of live subscriptions across all conversations.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, t := range h.topics {
		n += len(t.subs)
	}
	return n
}
