package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/auth"
	"github.com/loopmarked/dashboard/internal/proto"
)

// AuthHandlers issues development tokens.
type AuthHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(authService *auth.Service, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		log:         logger,
	}
}

// IssueDevToken returns a bearer token for a user id.
// POST /api/dev/token
func (h *AuthHandlers) IssueDevToken(c *gin.Context) {
	var req proto.DevTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid dev token request")
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.IssueDevToken(c.Request.Context(), req.UserID, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDevTokensDisabled):
			c.JSON(http.StatusForbidden, proto.ErrorResponse{Error: "dev tokens are disabled"})
		case errors.Is(err, auth.ErrInvalidUser):
			c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid user id"})
		default:
			h.log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to issue dev token")
			c.JSON(http.StatusInternalServerError, proto.ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("user_id", req.UserID).Msg("dev token issued")
	c.JSON(http.StatusOK, proto.TokenResponse{Token: token})
}
