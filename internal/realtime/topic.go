package realtime

import "github.com/loopmarked/dashboard/internal/store"

// topic groups subscriptions to the same conversation.
type topic struct {
	conversationID string
	subs           map[*Subscription]struct{}
}

func newTopic(conversationID string) *topic {
	return &topic{
		conversationID: conversationID,
		subs:           make(map[*Subscription]struct{}),
	}
}

// add inserts a subscription. Returns true if newly added.
func (t *topic) add(s *Subscription) bool {
	if _, exists := t.subs[s]; exists {
		return false
	}
	t.subs[s] = struct{}{}
	return true
}

// remove deletes a subscription. Returns true if removed.
func (t *topic) remove(s *Subscription) bool {
	if _, exists := t.subs[s]; !exists {
		return false
	}
	delete(t.subs, s)
	return true
}

// broadcast hands msg to every subscription and returns how many accepted it.
func (t *topic) broadcast(msg store.Message) (delivered, dropped int) {
	for s := range t.subs {
		select {
		case s.events <- msg:
			delivered++
		default:
			// Drop if slow consumer.
			dropped++
		}
	}
	return delivered, dropped
}

func (t *topic) empty() bool {
	return len(t.subs) == 0
}
