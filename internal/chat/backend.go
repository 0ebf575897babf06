package chat

import (
	"context"

	"github.com/loopmarked/dashboard/internal/store"
)

// Subscription is a live stream of messages inserted into one conversation.
// Events is closed after Close.
type Subscription interface {
	Events() <-chan store.Message
	Close() error
}

// Feed opens push subscriptions for inserts into a conversation.
type Feed interface {
	// Subscribe opens a subscription scoped to conversationID. ctx bounds
	// only the opening handshake, not the lifetime of the subscription.
	Subscribe(ctx context.Context, conversationID string) (Subscription, error)
}

// DirectoryBackend is the read/write surface ConversationDirectory needs.
type DirectoryBackend interface {
	ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error)
	FindConversation(ctx context.Context, listingID, buyerID, sellerID string) (*store.Conversation, error)
	CreateConversation(ctx context.Context, listingID, buyerID, sellerID string) (*store.Conversation, error)
	GetProfile(ctx context.Context, id string) (*store.Profile, error)
	GetListing(ctx context.Context, id string) (*store.Listing, error)
}

// SessionBackend is the read/write/push surface ActiveChatSession needs.
type SessionBackend interface {
	Feed
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
	// SaveMessage creates msg and fills in its ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *store.Message) error
}

// Backend is everything the chat core consumes from the managed backend.
type Backend interface {
	DirectoryBackend
	SessionBackend
}
