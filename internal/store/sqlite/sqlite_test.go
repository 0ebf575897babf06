package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/loopmarked/dashboard/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixedClock makes store timestamps deterministic.
func fixedClock(s *SQLiteStore, start time.Time) func(time.Duration) {
	current := start
	s.now = func() time.Time { return current }
	return func(d time.Duration) { current = current.Add(d) }
}

func TestCreateConversation_RejectsDuplicateTriple(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateConversation(ctx, "listing-1", "buyer", "seller")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected generated id")
	}

	if _, err := s.CreateConversation(ctx, "listing-1", "buyer", "seller"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	found, err := s.FindConversation(ctx, "listing-1", "buyer", "seller")
	if err != nil {
		t.Fatalf("find conversation: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("expected %s, got %s", first.ID, found.ID)
	}

	// Same pair over another listing is a different conversation.
	other, err := s.CreateConversation(ctx, "listing-2", "buyer", "seller")
	if err != nil {
		t.Fatalf("create second conversation: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("expected distinct conversation per listing")
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetConversation(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindConversation(context.Background(), "l", "b", "s"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListConversations_OrdersByMostRecentMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	advance := fixedClock(s, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	older, err := s.CreateConversation(ctx, "listing-1", "alice", "bob")
	if err != nil {
		t.Fatalf("create older: %v", err)
	}
	advance(time.Minute)
	newer, err := s.CreateConversation(ctx, "listing-2", "carol", "alice")
	if err != nil {
		t.Fatalf("create newer: %v", err)
	}
	if _, err := s.CreateConversation(ctx, "listing-3", "carol", "dave"); err != nil {
		t.Fatalf("create unrelated: %v", err)
	}

	list, err := s.ListConversations(ctx, "alice")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("unexpected order before message: %+v", list)
	}

	// A message bumps the older conversation to the top.
	advance(time.Minute)
	if err := s.SaveMessage(ctx, &store.Message{ConversationID: older.ID, SenderID: "bob", Content: "still available?"}); err != nil {
		t.Fatalf("save message: %v", err)
	}

	list, err = s.ListConversations(ctx, "alice")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if list[0].ID != older.ID {
		t.Fatalf("expected %s first, got %s", older.ID, list[0].ID)
	}
	if list[0].LastMessagePreview != "still available?" {
		t.Fatalf("unexpected preview %q", list[0].LastMessagePreview)
	}

	empty, err := s.ListConversations(ctx, "nobody")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", empty)
	}
}

func TestSaveMessage_UnknownConversation(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveMessage(context.Background(), &store.Message{ConversationID: "missing", SenderID: "a", Content: "hi"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMessages_ChronologicalWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	advance := fixedClock(s, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	conv, err := s.CreateConversation(ctx, "listing-1", "alice", "bob")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	texts := []string{"one", "two", "three", "four"}
	for _, text := range texts {
		advance(time.Second)
		msg := &store.Message{ConversationID: conv.ID, SenderID: "alice", Content: text, ClientRef: "ref-" + text}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save %s: %v", text, err)
		}
		if msg.ID == 0 {
			t.Fatalf("expected id to be assigned")
		}
	}
	advance(time.Second)
	offer := &store.Message{ConversationID: conv.ID, SenderID: "bob", Content: "12.5", Kind: store.MessageKindOffer}
	if err := s.SaveMessage(ctx, offer); err != nil {
		t.Fatalf("save offer: %v", err)
	}

	all, err := s.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d", i)
		}
	}
	if all[0].Kind != store.MessageKindText || all[0].ClientRef != "ref-one" {
		t.Fatalf("unexpected first message: %+v", all[0])
	}
	if all[4].Kind != store.MessageKindOffer || all[4].Content != "12.5" {
		t.Fatalf("unexpected last message: %+v", all[4])
	}

	recent, err := s.ListMessages(ctx, conv.ID, 2)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "four" || recent[1].Content != "12.5" {
		t.Fatalf("expected the two most recent in order, got %+v %+v", recent[0], recent[1])
	}

	updated, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if updated.LastMessagePreview != "Offer: 12.5" {
		t.Fatalf("unexpected preview %q", updated.LastMessagePreview)
	}
}

func TestProfilesAndListings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetProfile(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.UpsertProfile(ctx, &store.Profile{ID: "alice", FullName: "Alice"}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	if err := s.UpsertProfile(ctx, &store.Profile{ID: "alice", FullName: "Alice A.", AvatarURL: "/a.png"}); err != nil {
		t.Fatalf("upsert profile again: %v", err)
	}
	p, err := s.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.FullName != "Alice A." || p.AvatarURL != "/a.png" {
		t.Fatalf("unexpected profile %+v", p)
	}

	if err := s.UpsertListing(ctx, &store.Listing{ID: "l1", Title: "Bike", SellerID: "bob"}); err != nil {
		t.Fatalf("upsert listing: %v", err)
	}
	l, err := s.GetListing(ctx, "l1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if l.Title != "Bike" || l.SellerID != "bob" {
		t.Fatalf("unexpected listing %+v", l)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		msg  store.Message
		want string
	}{
		{name: "text", msg: store.Message{Content: "hello"}, want: "hello"},
		{name: "collapses whitespace", msg: store.Message{Content: " hi \n there "}, want: "hi there"},
		{name: "offer", msg: store.Message{Content: "40", Kind: store.MessageKindOffer}, want: "Offer: 40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(&tt.msg); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	long := Preview(&store.Message{Content: strings.Repeat("é", 200)})
	if n := len([]rune(long)); n != previewMaxRunes {
		t.Errorf("expected %d runes, got %d", previewMaxRunes, n)
	}
}
