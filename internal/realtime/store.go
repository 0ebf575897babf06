package realtime

import (
	"context"

	"github.com/loopmarked/dashboard/internal/store"
)

// FeedStore publishes every successfully saved message on the hub.
type FeedStore struct {
	store.Store
	hub *Hub
}

// WithFeed wraps st so that inserts reach hub subscribers.
func WithFeed(st store.Store, hub *Hub) *FeedStore {
	return &FeedStore{Store: st, hub: hub}
}

// SaveMessage persists msg and publishes it after commit.
func (s *FeedStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if err := s.Store.SaveMessage(ctx, msg); err != nil {
		return err
	}
	s.hub.Publish(*msg)
	return nil
}

// Hub returns the hub inserts are published on.
func (s *FeedStore) Hub() *Hub {
	return s.hub
}
