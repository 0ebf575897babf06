package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loopmarked/dashboard/internal/store"
)

// fakeBackend is an in-memory backend that records subscription lifecycle.
type fakeBackend struct {
	mu sync.Mutex

	conversations map[string]*store.Conversation
	profiles      map[string]*store.Profile
	listings      map[string]*store.Listing
	messages      map[string][]*store.Message
	nextID        int64
	clock         time.Time

	listErr      error
	profileErr   error
	historyErr   error
	saveErr      error
	subscribeErr error
	// conflictOnce makes the next create lose a race to a concurrent writer.
	conflictOnce bool
	// echo publishes saved messages to open subscriptions before SaveMessage returns.
	echo bool
	// afterSave runs inside SaveMessage after the row exists.
	afterSave func(store.Message)

	saves   int
	creates int
	subs    []*fakeSub
	log     []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		conversations: make(map[string]*store.Conversation),
		profiles:      make(map[string]*store.Profile),
		listings:      make(map[string]*store.Listing),
		messages:      make(map[string][]*store.Message),
		clock:         time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeBackend) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeBackend) addConversation(c store.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[c.ID] = &c
}

func (f *fakeBackend) seedMessage(conversationID, senderID, content string, kind store.MessageKind) store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := &store.Message{
		ID:             f.nextID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Kind:           kind,
		CreatedAt:      f.tick(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	return *msg
}

func (f *fakeBackend) ListConversations(_ context.Context, userID string) ([]*store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*store.Conversation
	for _, c := range f.conversations {
		if c.HasParticipant(userID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeBackend) FindConversation(_ context.Context, listingID, buyerID, sellerID string) (*store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.ListingID == listingID && c.BuyerID == buyerID && c.SellerID == sellerID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("conversation: %w", store.ErrNotFound)
}

func (f *fakeBackend) CreateConversation(_ context.Context, listingID, buyerID, sellerID string) (*store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	c := &store.Conversation{
		ID:        fmt.Sprintf("conv-%d", len(f.conversations)+1),
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		CreatedAt: f.tick(),
	}
	c.UpdatedAt = c.CreatedAt
	f.conversations[c.ID] = c
	if f.conflictOnce {
		f.conflictOnce = false
		return nil, fmt.Errorf("insert conversation: %w", store.ErrConflict)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeBackend) GetProfile(_ context.Context, id string) (*store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
	}
	return p, nil
}

func (f *fakeBackend) GetListing(_ context.Context, id string) (*store.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", id, store.ErrNotFound)
	}
	return l, nil
}

func (f *fakeBackend) ListMessages(_ context.Context, conversationID string, limit int) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	msgs := f.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*store.Message, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeBackend) SaveMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	f.saves++
	if f.saveErr != nil {
		f.mu.Unlock()
		return f.saveErr
	}
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = f.tick()
	stored := *msg
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], &stored)
	echo := f.echo
	hook := f.afterSave
	f.mu.Unlock()

	if echo {
		f.publish(stored)
	}
	if hook != nil {
		hook(stored)
	}
	return nil
}

func (f *fakeBackend) Subscribe(_ context.Context, conversationID string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := &fakeSub{backend: f, conversationID: conversationID, events: make(chan store.Message, 16)}
	f.subs = append(f.subs, sub)
	f.log = append(f.log, "open:"+conversationID)
	return sub, nil
}

// publish pushes msg to open subscriptions of its conversation.
func (f *fakeBackend) publish(msg store.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if !s.closed && s.conversationID == msg.ConversationID {
			s.events <- msg
		}
	}
}

func (f *fakeBackend) openSubscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if !s.closed {
			n++
		}
	}
	return n
}

func (f *fakeBackend) lifecycle() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func (f *fakeBackend) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type fakeSub struct {
	backend        *fakeBackend
	conversationID string
	events         chan store.Message
	closed         bool
}

func (s *fakeSub) Events() <-chan store.Message {
	return s.events
}

func (s *fakeSub) Close() error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	s.backend.log = append(s.backend.log, "close:"+s.conversationID)
	return nil
}
