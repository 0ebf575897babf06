package proto

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound is the envelope for frames coming from a push client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventInsert       = "insert"
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
)

// Error codes carried in error frames.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeNotFound           = "not_found"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInvalidMessage     = "invalid_message"
	ErrCodeInternal           = "internal"
)

// SubscribeData scopes a subscription to one conversation. Protocol is
// optional; when set it must equal ProtocolVersion.
type SubscribeData struct {
	ConversationID string `json:"conversation_id"`
	Protocol       int    `json:"protocol,omitempty"`
}

// Outbound is the envelope for frames sent to a push client.
type Outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// NewEvent builds an event frame with data encoded as JSON.
func NewEvent(event string, data any) (Outbound, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Outbound{}, fmt.Errorf("encode %s event: %w", event, err)
	}
	return Outbound{Type: OutboundTypeEvent, Event: event, Data: raw}, nil
}

// NewError builds an error frame.
func NewError(code, msg string) Outbound {
	return Outbound{Type: OutboundTypeError, Error: &Error{Code: code, Msg: msg}}
}

// Message is a messages row on the wire.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Kind           string    `json:"message_type"`
	ClientRef      string    `json:"client_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is a conversations row on the wire.
type Conversation struct {
	ID                 string    `json:"id"`
	ListingID          string    `json:"listing_id"`
	BuyerID            string    `json:"buyer_id"`
	SellerID           string    `json:"seller_id"`
	LastMessagePreview string    `json:"last_message_preview,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Profile is a profiles row on the wire.
type Profile struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Listing is a listings row on the wire.
type Listing struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SellerID string `json:"seller_id"`
}

// CreateConversationRequest asks for the conversation between the caller
// (as buyer) and a seller over a listing.
type CreateConversationRequest struct {
	ListingID string `json:"listing_id" binding:"required,max=128"`
	SellerID  string `json:"seller_id" binding:"required,max=128"`
}

// CreateMessageRequest inserts a message as the caller.
type CreateMessageRequest struct {
	Content   string `json:"content" binding:"required,max=4000"` // store.MaxContentLength
	Kind      string `json:"message_type" binding:"omitempty,oneof=text offer"`
	ClientRef string `json:"client_ref" binding:"max=64"`
}

// DevTokenRequest asks for a bearer token for a user id.
type DevTokenRequest struct {
	UserID   string `json:"user_id" binding:"required,max=128"`
	FullName string `json:"full_name" binding:"max=128"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}
