package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopmarked/dashboard/internal/store"
)

func TestDirectory_ListOrdersByMostRecentActivity(t *testing.T) {
	backend := newFakeBackend()
	t1 := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	backend.addConversation(store.Conversation{ID: "old", ListingID: "bike", BuyerID: "alice", SellerID: "bob", UpdatedAt: t1, LastMessagePreview: "ok"})
	backend.addConversation(store.Conversation{ID: "new", ListingID: "lamp", BuyerID: "carol", SellerID: "alice", UpdatedAt: t2})
	backend.addConversation(store.Conversation{ID: "foreign", ListingID: "lamp", BuyerID: "carol", SellerID: "dave", UpdatedAt: t2})
	backend.profiles["bob"] = &store.Profile{ID: "bob", FullName: "Bob Seller", AvatarURL: "/bob.png"}
	backend.listings["bike"] = &store.Listing{ID: "bike", Title: "City bike", SellerID: "bob"}

	d := NewDirectory(backend, nil)
	list, err := d.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.Equal(t, "new", list[0].Conversation.ID)
	require.Equal(t, "old", list[1].Conversation.ID)

	// carol has no profile and the lamp listing is unknown.
	require.Equal(t, Identity{UserID: "carol", Name: DefaultName, AvatarURL: DefaultAvatarURL}, list[0].Counterpart)
	require.Equal(t, DefaultListingTitle, list[0].ListingTitle)
	require.Equal(t, DefaultPreview, list[0].Preview)

	require.Equal(t, Identity{UserID: "bob", Name: "Bob Seller", AvatarURL: "/bob.png"}, list[1].Counterpart)
	require.Equal(t, "City bike", list[1].ListingTitle)
	require.Equal(t, "ok", list[1].Preview)
}

func TestDirectory_ProfileFailuresDoNotFailListing(t *testing.T) {
	backend := newFakeBackend()
	backend.addConversation(store.Conversation{ID: "c1", ListingID: "l", BuyerID: "alice", SellerID: "bob", UpdatedAt: time.Now()})
	backend.profileErr = errors.New("profiles unavailable")

	list, err := NewDirectory(backend, nil).List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, DefaultName, list[0].Counterpart.Name)
}

func TestDirectory_FetchFailureYieldsEmptyList(t *testing.T) {
	backend := newFakeBackend()
	backend.listErr = errors.New("dial tcp: connection refused")

	list, err := NewDirectory(backend, nil).List(context.Background(), "alice")
	require.ErrorIs(t, err, ErrNetwork)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func TestDirectory_EnsureConversationIsStable(t *testing.T) {
	backend := newFakeBackend()
	d := NewDirectory(backend, nil)
	ctx := context.Background()

	first, err := d.EnsureConversation(ctx, "L", "U1", "U2")
	require.NoError(t, err)
	second, err := d.EnsureConversation(ctx, "L", "U1", "U2")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, backend.creates)
}

func TestDirectory_EnsureConversationRecoversFromCreateRace(t *testing.T) {
	backend := newFakeBackend()
	backend.conflictOnce = true
	d := NewDirectory(backend, nil)

	id, err := d.EnsureConversation(context.Background(), "L", "U1", "U2")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	again, err := d.EnsureConversation(context.Background(), "L", "U1", "U2")
	require.NoError(t, err)
	require.Equal(t, id, again)
}

func TestDirectory_EnsureConversationValidates(t *testing.T) {
	d := NewDirectory(newFakeBackend(), nil)

	_, err := d.EnsureConversation(context.Background(), "L", "U1", "U1")
	require.ErrorIs(t, err, ErrValidation)

	_, err = d.EnsureConversation(context.Background(), "", "U1", "U2")
	require.ErrorIs(t, err, ErrValidation)
}
