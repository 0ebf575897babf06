package proto

import "github.com/loopmarked/dashboard/internal/store"

// FromMessage converts a stored message to its wire form.
func FromMessage(m *store.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Kind:           string(m.Kind),
		ClientRef:      m.ClientRef,
		CreatedAt:      m.CreatedAt,
	}
}

// ToMessage converts a wire message to the store form.
func (m Message) ToMessage() store.Message {
	kind := store.MessageKind(m.Kind)
	if kind == "" {
		kind = store.MessageKindText
	}
	return store.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Kind:           kind,
		ClientRef:      m.ClientRef,
		CreatedAt:      m.CreatedAt,
	}
}

// FromConversation converts a stored conversation to its wire form.
func FromConversation(c *store.Conversation) Conversation {
	return Conversation{
		ID:                 c.ID,
		ListingID:          c.ListingID,
		BuyerID:            c.BuyerID,
		SellerID:           c.SellerID,
		LastMessagePreview: c.LastMessagePreview,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// ToConversation converts a wire conversation to the store form.
func (c Conversation) ToConversation() *store.Conversation {
	return &store.Conversation{
		ID:                 c.ID,
		ListingID:          c.ListingID,
		BuyerID:            c.BuyerID,
		SellerID:           c.SellerID,
		LastMessagePreview: c.LastMessagePreview,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// FromProfile converts a stored profile to its wire form.
func FromProfile(p *store.Profile) Profile {
	return Profile{ID: p.ID, FullName: p.FullName, AvatarURL: p.AvatarURL}
}

// ToProfile converts a wire profile to the store form.
func (p Profile) ToProfile() *store.Profile {
	return &store.Profile{ID: p.ID, FullName: p.FullName, AvatarURL: p.AvatarURL}
}

// FromListing converts a stored listing to its wire form.
func FromListing(l *store.Listing) Listing {
	return Listing{ID: l.ID, Title: l.Title, SellerID: l.SellerID}
}

// ToListing converts a wire listing to the store form.
func (l Listing) ToListing() *store.Listing {
	return &store.Listing{ID: l.ID, Title: l.Title, SellerID: l.SellerID}
}
