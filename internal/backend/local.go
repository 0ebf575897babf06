// Package backend provides chat.Backend implementations: Local runs against
// an in-process store and hub, Remote talks to the development server over
// HTTP and WebSocket.
package backend

import (
	"context"

	"github.com/loopmarked/dashboard/internal/chat"
	"github.com/loopmarked/dashboard/internal/realtime"
)

// Local serves the chat core straight from a FeedStore. It performs no
// authorization; callers are trusted.
type Local struct {
	*realtime.FeedStore
}

var _ chat.Backend = (*Local)(nil)

// NewLocal wraps feed as a chat backend.
func NewLocal(feed *realtime.FeedStore) *Local {
	return &Local{FeedStore: feed}
}

// Subscribe opens a hub subscription for conversationID.
func (l *Local) Subscribe(ctx context.Context, conversationID string) (chat.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Hub().Subscribe(conversationID), nil
}
