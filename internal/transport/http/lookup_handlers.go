package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/proto"
	"github.com/loopmarked/dashboard/internal/store"
)

// LookupHandlers serves the profile and listing rows the directory joins in.
type LookupHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewLookupHandlers creates a new lookup handlers instance.
func NewLookupHandlers(st store.Store, logger *zerolog.Logger) *LookupHandlers {
	return &LookupHandlers{
		store: st,
		log:   logger,
	}
}

// GetProfile handles GET /api/profiles/:id.
func (h *LookupHandlers) GetProfile(c *gin.Context) {
	p, err := h.store.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeStoreError(c, h.log, err, "profile")
		return
	}
	c.JSON(http.StatusOK, proto.FromProfile(p))
}

// GetListing handles GET /api/listings/:id.
func (h *LookupHandlers) GetListing(c *gin.Context) {
	l, err := h.store.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeStoreError(c, h.log, err, "listing")
		return
	}
	c.JSON(http.StatusOK, proto.FromListing(l))
}
