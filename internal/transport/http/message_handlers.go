package http

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/proto"
	"github.com/loopmarked/dashboard/internal/store"
)

// maxHistoryLimit caps an explicit ?limit=. Without one the full history is returned.
const maxHistoryLimit = 1000

// MessageHandlers provides HTTP handlers for message endpoints.
type MessageHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store: st,
		log:   logger,
	}
}

// ListMessages returns the most recent messages of a conversation, oldest first.
// GET /api/conversations/:id/messages?limit=N
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	conv, ok := loadParticipantConversation(c, h.store, h.log, uid)
	if !ok {
		return
	}

	msgs, err := h.store.ListMessages(c.Request.Context(), conv.ID, limit)
	if err != nil {
		writeStoreError(c, h.log, err, "messages")
		return
	}

	response := make([]proto.Message, 0, len(msgs))
	for _, m := range msgs {
		response = append(response, proto.FromMessage(m))
	}
	c.JSON(http.StatusOK, response)
}

// CreateMessage inserts a message from the caller into a conversation.
// POST /api/conversations/:id/messages
func (h *MessageHandlers) CreateMessage(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	var req proto.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create message request")
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid request body"})
		return
	}

	kind := store.MessageKind(req.Kind)
	if kind == "" {
		kind = store.MessageKindText
	}
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "unknown message kind"})
		return
	}
	content := req.Content
	if utf8.RuneCountInString(content) > store.MaxContentLength {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "content is too long"})
		return
	}
	if kind == store.MessageKindText && strings.TrimSpace(content) == "" {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "content is required"})
		return
	}
	if kind == store.MessageKindOffer && !validOfferAmount(content) {
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "offer amount must be a positive number"})
		return
	}

	conv, ok := loadParticipantConversation(c, h.store, h.log, uid)
	if !ok {
		return
	}

	msg := &store.Message{
		ConversationID: conv.ID,
		SenderID:       uid,
		Content:        content,
		Kind:           kind,
		ClientRef:      req.ClientRef,
	}
	if err := h.store.SaveMessage(c.Request.Context(), msg); err != nil {
		writeStoreError(c, h.log, err, "message")
		return
	}

	h.log.Debug().
		Str("conversation_id", conv.ID).
		Int64("message_id", msg.ID).
		Str("kind", string(kind)).
		Msg("message created")
	c.JSON(http.StatusCreated, proto.FromMessage(msg))
}

func validOfferAmount(content string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(content), 64)
	return err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
