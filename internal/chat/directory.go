package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/loopmarked/dashboard/internal/store"
)

// Fallbacks shown when a lookup has nothing to offer.
const (
	DefaultName         = "User"
	DefaultAvatarURL    = "/images/app-icon.png"
	DefaultListingTitle = "Item"
	DefaultPreview      = "Start chatting..."
)

const lookupConcurrency = 4

// Identity is how the other party of a conversation is displayed.
type Identity struct {
	UserID    string
	Name      string
	AvatarURL string
}

// Summary is one row of the conversation list.
type Summary struct {
	Conversation store.Conversation
	Counterpart  Identity
	ListingTitle string
	Preview      string
}

// Directory lists the conversations visible to a user and creates new ones.
type Directory struct {
	backend DirectoryBackend
	log     *zerolog.Logger
}

// NewDirectory creates a directory over backend.
func NewDirectory(backend DirectoryBackend, logger *zerolog.Logger) *Directory {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Directory{backend: backend, log: logger}
}

// List returns userID's conversations, most recently active first.
// The returned slice is never nil. On a failed fetch it is empty and the
// error describes the failure so callers can show the empty state.
func (d *Directory) List(ctx context.Context, userID string) ([]Summary, error) {
	conversations, err := d.backend.ListConversations(ctx, userID)
	if err != nil {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("failed to list conversations")
		return []Summary{}, backendError("list conversations", err)
	}

	conversations = lo.Filter(conversations, func(c *store.Conversation, _ int) bool { return c != nil })
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	counterpartIDs := lo.Uniq(lo.Map(conversations, func(c *store.Conversation, _ int) string {
		return c.Counterpart(userID)
	}))
	listingIDs := lo.Uniq(lo.Map(conversations, func(c *store.Conversation, _ int) string {
		return c.ListingID
	}))

	identities, titles := d.resolve(ctx, counterpartIDs, listingIDs)

	summaries := lo.Map(conversations, func(c *store.Conversation, _ int) Summary {
		preview := strings.TrimSpace(c.LastMessagePreview)
		if preview == "" {
			preview = DefaultPreview
		}
		other := c.Counterpart(userID)
		return Summary{
			Conversation: *c,
			Counterpart:  identities[other],
			ListingTitle: titles[c.ListingID],
			Preview:      preview,
		}
	})

	d.log.Debug().Str("user_id", userID).Int("conversation_count", len(summaries)).Msg("conversations listed")
	return summaries, nil
}

// resolve looks up profiles and listing titles concurrently. Lookups never
// fail the listing: a missing or unreachable row yields the default.
func (d *Directory) resolve(ctx context.Context, userIDs, listingIDs []string) (map[string]Identity, map[string]string) {
	var mu sync.Mutex
	identities := make(map[string]Identity, len(userIDs))
	titles := make(map[string]string, len(listingIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)

	for _, id := range userIDs {
		g.Go(func() error {
			identity := Identity{UserID: id, Name: DefaultName, AvatarURL: DefaultAvatarURL}
			profile, err := d.backend.GetProfile(gctx, id)
			switch {
			case err != nil:
				d.log.Debug().Err(err).Str("user_id", id).Msg("profile lookup failed, using default identity")
			default:
				if name := strings.TrimSpace(profile.FullName); name != "" {
					identity.Name = name
				}
				if profile.AvatarURL != "" {
					identity.AvatarURL = profile.AvatarURL
				}
			}
			mu.Lock()
			identities[id] = identity
			mu.Unlock()
			return nil
		})
	}

	for _, id := range listingIDs {
		g.Go(func() error {
			title := DefaultListingTitle
			listing, err := d.backend.GetListing(gctx, id)
			if err != nil {
				d.log.Debug().Err(err).Str("listing_id", id).Msg("listing lookup failed, using default title")
			} else if t := strings.TrimSpace(listing.Title); t != "" {
				title = t
			}
			mu.Lock()
			titles[id] = title
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // lookups never return errors

	return identities, titles
}

// EnsureConversation returns the conversation for the triple, creating it
// when absent. Safe to call repeatedly: a create that loses a race against
// the backend's uniqueness constraint re-reads the winner.
func (d *Directory) EnsureConversation(ctx context.Context, listingID, buyerID, sellerID string) (string, error) {
	if listingID == "" || buyerID == "" || sellerID == "" {
		return "", validationError("listing, buyer and seller are required")
	}
	if buyerID == sellerID {
		return "", validationError("cannot start a conversation with yourself")
	}

	existing, err := d.backend.FindConversation(ctx, listingID, buyerID, sellerID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", backendError("find conversation", err)
	}

	created, err := d.backend.CreateConversation(ctx, listingID, buyerID, sellerID)
	if err == nil {
		d.log.Info().
			Str("conversation_id", created.ID).
			Str("listing_id", listingID).
			Msg("conversation created")
		return created.ID, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return "", backendError("create conversation", err)
	}

	winner, err := d.backend.FindConversation(ctx, listingID, buyerID, sellerID)
	if err != nil {
		return "", backendError("find conversation after conflict", err)
	}
	d.log.Info().Str("conversation_id", winner.ID).Msg("conversation created concurrently, reusing it")
	return winner.ID, nil
}
