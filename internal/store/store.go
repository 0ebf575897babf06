package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// Conversation binds a buyer and a seller to one listing.
type Conversation struct {
	ID                 string
	ListingID          string
	BuyerID            string
	SellerID           string
	LastMessagePreview string // empty until the first message
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Counterpart returns the participant that is not userID.
func (c *Conversation) Counterpart(userID string) string {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}

// HasParticipant reports whether userID is the buyer or the seller.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// MessageKind defines how message content is interpreted.
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindOffer MessageKind = "offer"
)

// MaxContentLength is the longest message content, in characters, the
// backend accepts.
const MaxContentLength = 4000

// Valid reports whether k is a known kind.
func (k MessageKind) Valid() bool {
	return k == MessageKindText || k == MessageKindOffer
}

// Message represents a persisted chat message.
type Message struct {
	ID             int64
	ConversationID string
	SenderID       string
	Content        string // literal text, or the amount for offers
	Kind           MessageKind
	ClientRef      string // set by the sending client to reconcile optimistic entries
	CreatedAt      time.Time
}

// Profile is the public identity of a user.
type Profile struct {
	ID        string
	FullName  string
	AvatarURL string
}

// Listing is the marketplace item a conversation is about.
type Listing struct {
	ID       string
	Title    string
	SellerID string
}

// ConversationStore handles conversation persistence.
type ConversationStore interface {
	// CreateConversation inserts a conversation for the triple.
	// Returns ErrConflict when one already exists.
	CreateConversation(ctx context.Context, listingID, buyerID, sellerID string) (*Conversation, error)

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// FindConversation retrieves the conversation for the triple, or ErrNotFound.
	FindConversation(ctx context.Context, listingID, buyerID, sellerID string) (*Conversation, error)

	// ListConversations lists conversations where userID is buyer or seller,
	// most recently updated first.
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and advances its conversation's
	// updated_at and preview. ID and CreatedAt are filled in on return.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit messages of a conversation, oldest first.
	// When more exist, the most recent ones are kept.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
}

// ProfileStore handles profile lookups.
type ProfileStore interface {
	// GetProfile retrieves a profile by user ID.
	GetProfile(ctx context.Context, id string) (*Profile, error)

	// UpsertProfile creates or replaces a profile.
	UpsertProfile(ctx context.Context, p *Profile) error
}

// ListingStore handles listing lookups.
type ListingStore interface {
	// GetListing retrieves a listing by ID.
	GetListing(ctx context.Context, id string) (*Listing, error)

	// UpsertListing creates or replaces a listing.
	UpsertListing(ctx context.Context, l *Listing) error
}

// Store aggregates all storage interfaces.
type Store interface {
	ConversationStore
	MessageStore
	ProfileStore
	ListingStore

	// Close closes the underlying database connection.
	Close() error
}
