package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/auth"
	"github.com/loopmarked/dashboard/internal/config"
	"github.com/loopmarked/dashboard/internal/proto"
	"github.com/loopmarked/dashboard/internal/realtime"
	"github.com/loopmarked/dashboard/internal/store"
)

// NewServer builds the development backend: REST over the tables and a
// WebSocket feed of inserts.
func NewServer(st *realtime.FeedStore, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	authHandlers := NewAuthHandlers(authService, logger)
	router.POST("/api/dev/token", authHandlers.IssueDevToken)

	conversations := NewConversationHandlers(st, logger)
	messages := NewMessageHandlers(st, logger)
	lookups := NewLookupHandlers(st, logger)

	api := router.Group("/api")
	api.Use(AuthMiddleware(authService, false, logger))
	{
		api.GET("/conversations", conversations.ListConversations)
		api.POST("/conversations", conversations.EnsureConversation)
		api.GET("/conversations/:id", conversations.GetConversation)
		api.GET("/conversations/:id/messages", messages.ListMessages)
		api.POST("/conversations/:id/messages", messages.CreateMessage)
		api.GET("/profiles/:id", lookups.GetProfile)
		api.GET("/listings/:id", lookups.GetListing)
	}

	ws := NewWSHandler(st, st.Hub(), cfg, logger)
	router.GET("/ws", AuthMiddleware(authService, true, logger), ws.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// writeStoreError maps store sentinels to HTTP statuses.
func writeStoreError(c *gin.Context, logger *zerolog.Logger, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(stdhttp.StatusNotFound, proto.ErrorResponse{Error: what + " not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(stdhttp.StatusConflict, proto.ErrorResponse{Error: what + " already exists"})
	default:
		logger.Error().Err(err).Str("resource", what).Msg("store request failed")
		c.JSON(stdhttp.StatusInternalServerError, proto.ErrorResponse{Error: "internal server error"})
	}
}
