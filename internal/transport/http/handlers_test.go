package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/loopmarked/dashboard/internal/proto"
	"github.com/loopmarked/dashboard/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	if code := env.do(t, http.MethodGet, "/api/conversations", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := env.do(t, http.MethodGet, "/api/conversations", "garbage", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with invalid token, got %d", code)
	}
}

func TestDevToken(t *testing.T) {
	env := newTestEnv(t)

	var resp proto.TokenResponse
	code := env.do(t, http.MethodPost, "/api/dev/token", "", proto.DevTokenRequest{UserID: "buyer", FullName: "Bea Buyer"}, &resp)
	if code != http.StatusOK || resp.Token == "" {
		t.Fatalf("expected token, got %d %+v", code, resp)
	}

	var profile proto.Profile
	if code := env.do(t, http.MethodGet, "/api/profiles/buyer", resp.Token, nil, &profile); code != http.StatusOK {
		t.Fatalf("expected profile, got %d", code)
	}
	if profile.FullName != "Bea Buyer" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestEnsureConversationIsStable(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "buyer")

	req := proto.CreateConversationRequest{ListingID: "listing-1", SellerID: "seller"}

	var first proto.Conversation
	if code := env.do(t, http.MethodPost, "/api/conversations", token, req, &first); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if first.BuyerID != "buyer" || first.SellerID != "seller" {
		t.Fatalf("unexpected parties: %+v", first)
	}

	var second proto.Conversation
	if code := env.do(t, http.MethodPost, "/api/conversations", token, req, &second); code != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d", code)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same conversation, got %s and %s", first.ID, second.ID)
	}

	self := proto.CreateConversationRequest{ListingID: "listing-1", SellerID: "buyer"}
	if code := env.do(t, http.MethodPost, "/api/conversations", token, self, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for self conversation, got %d", code)
	}
}

func TestListConversationsScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	env.conversation(t, "l1", "buyer", "seller")
	env.conversation(t, "l2", "other", "seller")

	var convs []proto.Conversation
	if code := env.do(t, http.MethodGet, "/api/conversations", env.token(t, "buyer"), nil, &convs); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(convs) != 1 || convs[0].ListingID != "l1" {
		t.Fatalf("unexpected conversations: %+v", convs)
	}

	if code := env.do(t, http.MethodGet, "/api/conversations", env.token(t, "seller"), nil, &convs); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(convs) != 2 {
		t.Fatalf("seller should see both conversations, got %d", len(convs))
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "l1", "buyer", "seller")
	buyer := env.token(t, "buyer")
	path := "/api/conversations/" + conv.ID + "/messages"

	var created proto.Message
	code := env.do(t, http.MethodPost, path, buyer, proto.CreateMessageRequest{Content: "hello", ClientRef: "ref-1"}, &created)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if created.ID == 0 || created.SenderID != "buyer" || created.Kind != "text" || created.ClientRef != "ref-1" {
		t.Fatalf("unexpected message: %+v", created)
	}

	code = env.do(t, http.MethodPost, path, buyer, proto.CreateMessageRequest{Content: "12.5", Kind: "offer"}, nil)
	if code != http.StatusCreated {
		t.Fatalf("expected 201 for offer, got %d", code)
	}

	var msgs []proto.Message
	if code := env.do(t, http.MethodGet, path+"?limit=10", env.token(t, "seller"), nil, &msgs); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(msgs) != 2 || msgs[0].Content != "hello" || msgs[1].Kind != "offer" {
		t.Fatalf("unexpected history: %+v", msgs)
	}

	var got proto.Conversation
	if code := env.do(t, http.MethodGet, "/api/conversations/"+conv.ID, buyer, nil, &got); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if got.LastMessagePreview == "" {
		t.Fatalf("preview not advanced: %+v", got)
	}
}

func TestListMessagesReturnsFullHistoryWithoutLimit(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "l1", "buyer", "seller")
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 250; i++ {
		msg := &store.Message{
			ConversationID: conv.ID,
			SenderID:       "seller",
			Content:        fmt.Sprintf("m%d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := env.store.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save message %d: %v", i, err)
		}
	}
	buyer := env.token(t, "buyer")
	path := "/api/conversations/" + conv.ID + "/messages"

	var all []proto.Message
	if code := env.do(t, http.MethodGet, path, buyer, nil, &all); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(all) != 250 || all[0].Content != "m0" || all[249].Content != "m249" {
		t.Fatalf("expected full history, got %d messages", len(all))
	}

	var recent []proto.Message
	if code := env.do(t, http.MethodGet, path+"?limit=5", buyer, nil, &recent); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(recent) != 5 || recent[0].Content != "m245" {
		t.Fatalf("unexpected limited history: %+v", recent)
	}
}

func TestCreateMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "l1", "buyer", "seller")
	buyer := env.token(t, "buyer")
	path := "/api/conversations/" + conv.ID + "/messages"

	cases := []struct {
		name string
		req  proto.CreateMessageRequest
	}{
		{"blank text", proto.CreateMessageRequest{Content: "   "}},
		{"zero offer", proto.CreateMessageRequest{Content: "0", Kind: "offer"}},
		{"negative offer", proto.CreateMessageRequest{Content: "-5", Kind: "offer"}},
		{"text offer", proto.CreateMessageRequest{Content: "abc", Kind: "offer"}},
		{"unknown kind", proto.CreateMessageRequest{Content: "hi", Kind: "image"}},
		{"too long", proto.CreateMessageRequest{Content: strings.Repeat("a", store.MaxContentLength+1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code := env.do(t, http.MethodPost, path, buyer, tc.req, nil); code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", code)
			}
		})
	}

	msgs, err := env.store.ListMessages(context.Background(), conv.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("rejected messages were stored: %d", len(msgs))
	}
}

func TestNonParticipantGetsNotFound(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "l1", "buyer", "seller")
	stranger := env.token(t, "stranger")

	if code := env.do(t, http.MethodGet, "/api/conversations/"+conv.ID, stranger, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	req := proto.CreateMessageRequest{Content: "hi"}
	if code := env.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", stranger, req, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if code := env.do(t, http.MethodGet, "/api/conversations/missing", stranger, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", code)
	}
}

func TestListingLookup(t *testing.T) {
	env := newTestEnv(t)
	if err := env.store.UpsertListing(context.Background(), &store.Listing{ID: "l1", Title: "Road bike", SellerID: "seller"}); err != nil {
		t.Fatalf("upsert listing: %v", err)
	}
	token := env.token(t, "buyer")

	var listing proto.Listing
	if code := env.do(t, http.MethodGet, "/api/listings/l1", token, nil, &listing); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if listing.Title != "Road bike" {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	if code := env.do(t, http.MethodGet, "/api/listings/nope", token, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}
