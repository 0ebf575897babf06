package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/proto"
	"github.com/loopmarked/dashboard/internal/store"
)

// ConversationHandlers provides HTTP handlers for conversation endpoints.
type ConversationHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewConversationHandlers creates a new conversation handlers instance.
func NewConversationHandlers(st store.Store, logger *zerolog.Logger) *ConversationHandlers {
	return &ConversationHandlers{
		store: st,
		log:   logger,
	}
}

// ListConversations lists conversations the caller takes part in.
// GET /api/conversations
func (h *ConversationHandlers) ListConversations(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	convs, err := h.store.ListConversations(c.Request.Context(), uid)
	if err != nil {
		writeStoreError(c, h.log, err, "conversations")
		return
	}

	response := make([]proto.Conversation, 0, len(convs))
	for _, conv := range convs {
		response = append(response, proto.FromConversation(conv))
	}

	h.log.Debug().Str("user_id", uid).Int("conversation_count", len(convs)).Msg("conversations listed")
	c.JSON(http.StatusOK, response)
}

// EnsureConversation returns the conversation between the caller (as buyer)
// and a seller over a listing, creating it when absent.
// POST /api/conversations
func (h *ConversationHandlers) EnsureConversation(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	var req proto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create conversation request")
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.SellerID == uid {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "cannot start a conversation with yourself"})
		return
	}

	conv, created, err := h.ensure(c.Request.Context(), req.ListingID, uid, req.SellerID)
	if err != nil {
		writeStoreError(c, h.log, err, "conversation")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.log.Info().Str("conversation_id", conv.ID).Str("listing_id", conv.ListingID).Msg("conversation created")
	}
	c.JSON(status, proto.FromConversation(conv))
}

func (h *ConversationHandlers) ensure(ctx context.Context, listingID, buyerID, sellerID string) (*store.Conversation, bool, error) {
	conv, err := h.store.FindConversation(ctx, listingID, buyerID, sellerID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	conv, err = h.store.CreateConversation(ctx, listingID, buyerID, sellerID)
	if errors.Is(err, store.ErrConflict) {
		// a concurrent request created it first
		conv, err = h.store.FindConversation(ctx, listingID, buyerID, sellerID)
		return conv, false, err
	}
	return conv, err == nil, err
}

// GetConversation returns a conversation the caller takes part in.
// GET /api/conversations/:id
func (h *ConversationHandlers) GetConversation(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	conv, ok := loadParticipantConversation(c, h.store, h.log, uid)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, proto.FromConversation(conv))
}

// loadParticipantConversation loads the :id conversation and answers 404
// when it is missing or the caller is not one of its parties.
func loadParticipantConversation(c *gin.Context, st store.ConversationStore, logger *zerolog.Logger, uid string) (*store.Conversation, bool) {
	conv, err := st.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeStoreError(c, logger, err, "conversation")
		return nil, false
	}
	if !conv.HasParticipant(uid) {
		c.JSON(http.StatusNotFound, proto.ErrorResponse{Error: "conversation not found"})
		return nil, false
	}
	return conv, true
}
