package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/config"
	"github.com/loopmarked/dashboard/internal/proto"
	"github.com/loopmarked/dashboard/internal/realtime"
	"github.com/loopmarked/dashboard/internal/store"
	"github.com/loopmarked/dashboard/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to realtime.Hub
// subscriptions.
type WSHandler struct {
	store store.ConversationStore
	hub   *realtime.Hub
	cfg   *config.Config
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(st store.ConversationStore, hub *realtime.Hub, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{store: st, hub: hub, cfg: cfg, log: logger}
}

// wsSession is the state of one accepted connection.
type wsSession struct {
	h      *WSHandler
	id     string
	userID string
	conn   *websocket.Conn
	out    chan proto.Outbound
	limit  *rateLimiter
	log    zerolog.Logger

	mu   sync.Mutex
	subs map[string]*realtime.Subscription
	wg   sync.WaitGroup
}

// Handle serves GET /ws. AuthMiddleware has already resolved the user.
func (h *WSHandler) Handle(c *gin.Context) {
	uid, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	id := utils.NewID()
	s := &wsSession{
		h:      h,
		id:     id,
		userID: uid,
		conn:   conn,
		out:    make(chan proto.Outbound, h.hubBuffer()),
		limit:  newRateLimiter(h.cfg.WSRateLimit),
		log:    h.log.With().Str("client_id", id).Str("user_id", uid).Logger(),
		subs:   make(map[string]*realtime.Subscription),
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.readLoop(ctx)
	}()
	go func() {
		errCh <- s.writeLoop(ctx)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh
	s.closeAll()

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if st := websocket.CloseStatus(err); st != -1 {
			status = st
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			s.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) hubBuffer() int {
	if h.cfg.SubscriberBuffer > 0 {
		return h.cfg.SubscriberBuffer
	}
	return realtime.DefaultBuffer
}

func (s *wsSession) readLoop(ctx context.Context) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, s.conn, &inbound); err != nil {
			return err
		}

		if !s.limit.allow() {
			if !s.send(ctx, proto.NewError(proto.ErrCodeRateLimited, "too many frames")) {
				return ctx.Err()
			}
			continue
		}

		if !s.handle(ctx, inbound) {
			return ctx.Err()
		}
	}
}

// handle applies one inbound frame and sends its reply. It reports false
// once the connection is shutting down.
func (s *wsSession) handle(ctx context.Context, inbound proto.Inbound) bool {
	switch inbound.Type {
	case proto.InboundTypeSubscribe, proto.InboundTypeUnsubscribe:
	default:
		return s.send(ctx, proto.NewError(proto.ErrCodeInvalidMessage, "unknown message type"))
	}

	var data proto.SubscribeData
	if err := json.Unmarshal(inbound.Data, &data); err != nil {
		return s.send(ctx, proto.NewError(proto.ErrCodeBadRequest, "malformed data"))
	}
	if data.Protocol != 0 && data.Protocol != proto.ProtocolVersion {
		return s.send(ctx, proto.NewError(proto.ErrCodeUnsupportedVersion, "unsupported protocol version"))
	}
	if data.ConversationID == "" {
		return s.send(ctx, proto.NewError(proto.ErrCodeBadRequest, "conversation_id is required"))
	}

	if inbound.Type == proto.InboundTypeUnsubscribe {
		s.unsubscribe(data.ConversationID)
		return s.ack(ctx, proto.EventUnsubscribed, data.ConversationID)
	}
	return s.subscribe(ctx, data.ConversationID)
}

func (s *wsSession) ack(ctx context.Context, event, conversationID string) bool {
	frame, err := proto.NewEvent(event, proto.SubscribeData{ConversationID: conversationID})
	if err != nil {
		return s.send(ctx, proto.NewError(proto.ErrCodeInternal, "internal error"))
	}
	return s.send(ctx, frame)
}

// subscribe registers with the hub before acknowledging, and starts
// forwarding only after the ack is queued, so the client sees
// "subscribed" ahead of any insert.
func (s *wsSession) subscribe(ctx context.Context, conversationID string) bool {
	conv, err := s.h.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.send(ctx, proto.NewError(proto.ErrCodeNotFound, "conversation not found"))
		}
		s.log.Error().Err(err).Str("conversation_id", conversationID).Msg("load conversation for subscribe")
		return s.send(ctx, proto.NewError(proto.ErrCodeInternal, "internal error"))
	}
	if !conv.HasParticipant(s.userID) {
		return s.send(ctx, proto.NewError(proto.ErrCodeNotFound, "conversation not found"))
	}

	s.mu.Lock()
	_, exists := s.subs[conversationID]
	var sub *realtime.Subscription
	if !exists {
		sub = s.h.hub.Subscribe(conversationID)
		s.subs[conversationID] = sub
		s.wg.Add(1)
	}
	s.mu.Unlock()

	ok := s.ack(ctx, proto.EventSubscribed, conversationID)
	if sub != nil {
		go s.forward(ctx, sub)
		s.log.Debug().Str("conversation_id", conversationID).Msg("subscribed")
	}
	return ok
}

func (s *wsSession) unsubscribe(conversationID string) {
	s.mu.Lock()
	sub, ok := s.subs[conversationID]
	delete(s.subs, conversationID)
	s.mu.Unlock()
	if ok {
		_ = sub.Close()
		s.log.Debug().Str("conversation_id", conversationID).Msg("unsubscribed")
	}
}

// forward relays a subscription's inserts until it is closed.
func (s *wsSession) forward(ctx context.Context, sub *realtime.Subscription) {
	defer s.wg.Done()
	for msg := range sub.Events() {
		frame, err := proto.NewEvent(proto.EventInsert, proto.FromMessage(&msg))
		if err != nil {
			s.log.Error().Err(err).Msg("encode insert event")
			continue
		}
		if !s.send(ctx, frame) {
			return
		}
	}
}

func (s *wsSession) send(ctx context.Context, frame proto.Outbound) bool {
	select {
	case s.out <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *wsSession) writeLoop(ctx context.Context) error {
	for {
		select {
		case frame := <-s.out:
			if err := wsjson.Write(ctx, s.conn, frame); err != nil {
				s.log.Error().Err(err).Msg("write ws frame")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *wsSession) closeAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]*realtime.Subscription)
	s.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Close()
	}
	s.wg.Wait()
}
