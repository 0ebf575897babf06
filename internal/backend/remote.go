package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/loopmarked/dashboard/internal/chat"
	"github.com/loopmarked/dashboard/internal/proto"
	"github.com/loopmarked/dashboard/internal/realtime"
	"github.com/loopmarked/dashboard/internal/store"
)

var (
	// ErrUnauthorized is returned when the server rejects the bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected is returned when the server refuses a request as invalid.
	ErrRejected = errors.New("request rejected")
	// ErrNotSignedIn is returned when an operation names a user other than the token's.
	ErrNotSignedIn = errors.New("user is not the signed-in user")
)

const defaultRequestTimeout = 10 * time.Second

// Remote talks to the development backend over REST, with inserts pushed
// over a WebSocket per subscription.
type Remote struct {
	base   *url.URL
	token  string
	userID string
	client *http.Client
	buffer int
	log    *zerolog.Logger
}

var _ chat.Backend = (*Remote)(nil)

// RemoteOption customizes a Remote.
type RemoteOption func(*Remote)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

// WithSubscriberBuffer sets the queue length of each subscription.
func WithSubscriberBuffer(n int) RemoteOption {
	return func(r *Remote) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// WithLogger sets the logger used by background read loops.
func WithLogger(logger *zerolog.Logger) RemoteOption {
	return func(r *Remote) {
		if logger != nil {
			r.log = logger
		}
	}
}

// NewRemote creates a client for the server at baseURL acting as userID,
// authenticated with token.
func NewRemote(baseURL, userID, token string, opts ...RemoteOption) (*Remote, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http or https, got %q", baseURL)
	}

	nop := zerolog.Nop()
	r := &Remote{
		base:   base,
		token:  token,
		userID: userID,
		client: &http.Client{Timeout: defaultRequestTimeout},
		buffer: realtime.DefaultBuffer,
		log:    &nop,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RequestDevToken asks a server with dev tokens enabled for a bearer token.
func RequestDevToken(ctx context.Context, baseURL, userID, fullName string) (string, error) {
	r, err := NewRemote(baseURL, userID, "")
	if err != nil {
		return "", err
	}
	var resp proto.TokenResponse
	if err := r.do(ctx, http.MethodPost, "/api/dev/token", proto.DevTokenRequest{UserID: userID, FullName: fullName}, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// ListConversations lists the signed-in user's conversations.
func (r *Remote) ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error) {
	if userID != r.userID {
		return nil, ErrNotSignedIn
	}
	var convs []proto.Conversation
	if err := r.do(ctx, http.MethodGet, "/api/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return lo.Map(convs, func(c proto.Conversation, _ int) *store.Conversation {
		return c.ToConversation()
	}), nil
}

// FindConversation looks the triple up among the caller's conversations.
func (r *Remote) FindConversation(ctx context.Context, listingID, buyerID, sellerID string) (*store.Conversation, error) {
	convs, err := r.ListConversations(ctx, r.userID)
	if err != nil {
		return nil, err
	}
	conv, ok := lo.Find(convs, func(c *store.Conversation) bool {
		return c.ListingID == listingID && c.BuyerID == buyerID && c.SellerID == sellerID
	})
	if !ok {
		return nil, fmt.Errorf("conversation %s/%s/%s: %w", listingID, buyerID, sellerID, store.ErrNotFound)
	}
	return conv, nil
}

// CreateConversation ensures the conversation on the server. The signed-in
// user is always the buyer.
func (r *Remote) CreateConversation(ctx context.Context, listingID, buyerID, sellerID string) (*store.Conversation, error) {
	if buyerID != r.userID {
		return nil, ErrNotSignedIn
	}
	var conv proto.Conversation
	req := proto.CreateConversationRequest{ListingID: listingID, SellerID: sellerID}
	if err := r.do(ctx, http.MethodPost, "/api/conversations", req, &conv); err != nil {
		return nil, err
	}
	return conv.ToConversation(), nil
}

// GetProfile fetches a profile row.
func (r *Remote) GetProfile(ctx context.Context, id string) (*store.Profile, error) {
	var p proto.Profile
	if err := r.do(ctx, http.MethodGet, "/api/profiles/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return p.ToProfile(), nil
}

// GetListing fetches a listing row.
func (r *Remote) GetListing(ctx context.Context, id string) (*store.Listing, error) {
	var l proto.Listing
	if err := r.do(ctx, http.MethodGet, "/api/listings/"+url.PathEscape(id), nil, &l); err != nil {
		return nil, err
	}
	return l.ToListing(), nil
}

// ListMessages fetches up to limit recent messages, oldest first.
func (r *Remote) ListMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error) {
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var msgs []proto.Message
	if err := r.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return lo.Map(msgs, func(m proto.Message, _ int) *store.Message {
		msg := m.ToMessage()
		return &msg
	}), nil
}

// SaveMessage posts msg as the signed-in user and fills in the server
// assigned ID and CreatedAt.
func (r *Remote) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.SenderID != r.userID {
		return ErrNotSignedIn
	}
	path := "/api/conversations/" + url.PathEscape(msg.ConversationID) + "/messages"
	req := proto.CreateMessageRequest{Content: msg.Content, Kind: string(msg.Kind), ClientRef: msg.ClientRef}

	var saved proto.Message
	if err := r.do(ctx, http.MethodPost, path, req, &saved); err != nil {
		return err
	}
	msg.ID = saved.ID
	msg.CreatedAt = saved.CreatedAt
	return nil
}

// do sends a JSON request and decodes a JSON response into out.
func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// statusError maps HTTP statuses back to store sentinels.
func statusError(method, path string, resp *http.Response) error {
	var body proto.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = store.ErrNotFound
	case http.StatusConflict:
		sentinel = store.ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrUnauthorized
	case http.StatusBadRequest:
		sentinel = ErrRejected
	default:
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, body.Error)
	}
	if body.Error != "" {
		return fmt.Errorf("%s %s: %s: %w", method, path, body.Error, sentinel)
	}
	return fmt.Errorf("%s %s: %w", method, path, sentinel)
}
