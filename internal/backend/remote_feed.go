package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/chat"
	"github.com/loopmarked/dashboard/internal/proto"
	"github.com/loopmarked/dashboard/internal/store"
)

// remoteSubscription owns one WebSocket connection scoped to a conversation.
type remoteSubscription struct {
	conversationID string
	conn           *websocket.Conn
	events         chan store.Message
	cancel         context.CancelFunc
	done           chan struct{}
	once           sync.Once
	log            zerolog.Logger
}

// Subscribe dials the push channel and subscribes to conversationID. ctx
// bounds the dial and the subscribe handshake only.
func (r *Remote) Subscribe(ctx context.Context, conversationID string) (chat.Subscription, error) {
	wsURL := *r.base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path += "/ws"
	wsURL.RawQuery = url.Values{"token": {r.token}}.Encode()

	conn, _, err := websocket.Dial(ctx, wsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial push channel: %w", err)
	}

	if err := handshake(ctx, conn, conversationID); err != nil {
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	sub := &remoteSubscription{
		conversationID: conversationID,
		conn:           conn,
		events:         make(chan store.Message, r.buffer),
		cancel:         cancel,
		done:           make(chan struct{}),
		log:            r.log.With().Str("conversation_id", conversationID).Logger(),
	}
	go sub.readLoop(loopCtx)
	return sub, nil
}

func handshake(ctx context.Context, conn *websocket.Conn, conversationID string) error {
	payload, err := json.Marshal(proto.SubscribeData{ConversationID: conversationID, Protocol: proto.ProtocolVersion})
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSubscribe, Data: payload}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	var outbound proto.Outbound
	if err := wsjson.Read(ctx, conn, &outbound); err != nil {
		return fmt.Errorf("read subscribe ack: %w", err)
	}
	switch {
	case outbound.Type == proto.OutboundTypeEvent && outbound.Event == proto.EventSubscribed:
		return nil
	case outbound.Error != nil && outbound.Error.Code == proto.ErrCodeNotFound:
		return fmt.Errorf("subscribe %s: %s: %w", conversationID, outbound.Error.Msg, store.ErrNotFound)
	case outbound.Error != nil:
		return fmt.Errorf("subscribe %s: %s: %s", conversationID, outbound.Error.Code, outbound.Error.Msg)
	default:
		return fmt.Errorf("subscribe %s: unexpected frame %q/%q", conversationID, outbound.Type, outbound.Event)
	}
}

func (s *remoteSubscription) Events() <-chan store.Message {
	return s.events
}

// Close tears the connection down and waits for the read loop, so Events
// is closed when Close returns.
func (s *remoteSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		_ = s.conn.Close(websocket.StatusNormalClosure, "unsubscribe")
	})
	<-s.done
	return nil
}

func (s *remoteSubscription) readLoop(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, s.conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			s.log.Warn().Err(err).Msg("push channel read failed")
			return
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			s.log.Warn().Str("code", outbound.Error.Code).Str("msg", outbound.Error.Msg).Msg("push channel error")
			continue
		}
		if outbound.Event != proto.EventInsert {
			continue
		}

		var wire proto.Message
		if err := json.Unmarshal(outbound.Data, &wire); err != nil {
			s.log.Warn().Err(err).Msg("unmarshal insert")
			continue
		}
		if wire.ConversationID != s.conversationID {
			continue
		}

		select {
		case s.events <- wire.ToMessage():
		case <-ctx.Done():
			return
		}
	}
}
