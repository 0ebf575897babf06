package chat

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/store"
	"github.com/loopmarked/dashboard/internal/utils"
)

// State is where the session is in its selection lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// View is what the render callback receives after every change.
type View struct {
	ConversationID string
	State          State
	Messages       []DisplayMessage
}

// RenderFunc is invoked with a fresh View whenever the displayed sequence changes.
type RenderFunc func(View)

// SessionConfig configures a Session.
type SessionConfig struct {
	UserID string
	// HistoryLimit keeps only the most recent messages on Select.
	// Zero loads the full history.
	HistoryLimit int
	OnChange     RenderFunc
}

type entry struct {
	msg    store.Message
	status Status
}

// Session owns the active conversation: its message history, its push
// subscription and the optimistic send state. At most one subscription is
// live at any time; selecting another conversation closes the previous one
// before opening the next.
type Session struct {
	backend      SessionBackend
	userID       string
	historyLimit int
	onChange     RenderFunc
	log          *zerolog.Logger
	now          func() time.Time

	// selectMu serializes subscription handoff between Select calls.
	selectMu sync.Mutex
	// notifyMu keeps render callbacks in state order.
	notifyMu sync.Mutex

	mu             sync.Mutex
	state          State
	conversationID string
	generation     uint64
	cancelLoad     context.CancelFunc
	entries        []*entry
	ids            map[int64]struct{}
	sub            Subscription
}

// NewSession creates an idle session for cfg.UserID.
func NewSession(backend SessionBackend, cfg SessionConfig, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	limit := cfg.HistoryLimit
	if limit < 0 {
		limit = 0
	}
	return &Session{
		backend:      backend,
		userID:       cfg.UserID,
		historyLimit: limit,
		onChange:     cfg.OnChange,
		log:          logger,
		now:          time.Now,
		ids:          make(map[int64]struct{}),
	}
}

// UserID returns the local user.
func (s *Session) UserID() string {
	return s.userID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConversationID returns the active conversation, or "" when idle.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns the rendered sequence of the active conversation.
func (s *Session) Messages() []DisplayMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayLocked()
}

// Select makes conversationID the active conversation. The previous
// subscription is released first, the history is loaded oldest first and
// then a subscription for new inserts is opened. A later Select or Release
// supersedes an in-flight one, which then returns ErrSuperseded.
func (s *Session) Select(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return validationError("conversation id is required")
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.generation == gen {
			s.cancelLoad = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	s.selectMu.Lock()
	defer s.selectMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return chatError(ErrCodeSuperseded, "select "+conversationID, nil)
	}
	prev := s.detachLocked()
	s.state = StateLoading
	s.conversationID = conversationID
	s.mu.Unlock()

	s.closeSubscription(prev)
	s.notify()

	history, err := s.backend.ListMessages(loadCtx, conversationID, s.historyLimit)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return chatError(ErrCodeSuperseded, "select "+conversationID, nil)
	}
	if err != nil {
		s.resetLocked()
		s.mu.Unlock()
		s.notify()
		s.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to load messages")
		return backendError("load messages", err)
	}
	for _, msg := range history {
		if msg != nil {
			s.appendLocked(*msg)
		}
	}
	s.state = StateReady
	s.mu.Unlock()
	s.notify()

	sub, err := s.backend.Subscribe(loadCtx, conversationID)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.closeSubscription(sub)
		return chatError(ErrCodeSuperseded, "select "+conversationID, nil)
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to subscribe, live updates unavailable")
		return backendError("subscribe to conversation", err)
	}
	s.sub = sub
	s.mu.Unlock()

	go s.pump(gen, sub)

	s.log.Debug().
		Str("conversation_id", conversationID).
		Int("history", len(history)).
		Msg("conversation selected")
	return nil
}

// Release detaches the push subscription and returns the session to Idle.
// Idempotent.
func (s *Session) Release() {
	s.mu.Lock()
	wasIdle := s.state == StateIdle && s.sub == nil
	s.generation++
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	prev := s.detachLocked()
	s.resetLocked()
	s.mu.Unlock()

	s.closeSubscription(prev)
	if !wasIdle {
		s.notify()
	}
}

// Reset releases the session and always notifies the renderer, so a
// presentation layer can redraw its empty state.
func (s *Session) Reset() {
	s.Release()
	s.notify()
}

// Append adds a pushed message to the active conversation. Messages for
// another conversation and ids already present are ignored, and a message
// carrying the client reference of a pending entry confirms that entry.
// Reports whether the displayed sequence changed.
func (s *Session) Append(msg store.Message) bool {
	s.mu.Lock()
	if s.state != StateReady || msg.ConversationID != s.conversationID {
		s.mu.Unlock()
		return false
	}
	changed := s.appendLocked(msg)
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return changed
}

// Send posts a text message. The entry is shown as pending right away and
// confirmed once the backend acknowledges it or its push echo arrives.
// On failure the entry stays visible as failed; see Retry and Discard.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return validationError("message is empty")
	}
	if utf8.RuneCountInString(text) > store.MaxContentLength {
		return validationError(fmt.Sprintf("message is longer than %d characters", store.MaxContentLength))
	}
	return s.submit(ctx, store.MessageKindText, text)
}

// SendOffer posts an offer of amount. amount must be finite and > 0.
func (s *Session) SendOffer(ctx context.Context, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return validationError("offer amount must be a positive number")
	}
	return s.submit(ctx, store.MessageKindOffer, strconv.FormatFloat(amount, 'f', -1, 64))
}

// Retry resends a failed entry.
func (s *Session) Retry(ctx context.Context, clientRef string) error {
	s.mu.Lock()
	e := s.findByRefLocked(clientRef)
	if e == nil || e.status != StatusFailed {
		s.mu.Unlock()
		return validationError("no failed message to retry")
	}
	e.status = StatusPending
	msg := e.msg
	gen := s.generation
	s.mu.Unlock()
	s.notify()

	return s.deliver(ctx, gen, msg)
}

// Discard drops a failed entry from the displayed sequence.
func (s *Session) Discard(clientRef string) bool {
	s.mu.Lock()
	idx := slices.IndexFunc(s.entries, func(e *entry) bool {
		return e.msg.ClientRef == clientRef && e.status == StatusFailed
	})
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.entries = slices.Delete(s.entries, idx, idx+1)
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Session) submit(ctx context.Context, kind store.MessageKind, content string) error {
	s.mu.Lock()
	if s.conversationID == "" {
		s.mu.Unlock()
		return chatError(ErrCodeNoActiveConversation, "send", nil)
	}
	msg := store.Message{
		ConversationID: s.conversationID,
		SenderID:       s.userID,
		Content:        content,
		Kind:           kind,
		ClientRef:      utils.NewID(),
		CreatedAt:      s.now(),
	}
	s.insertLocked(&entry{msg: msg, status: StatusPending})
	gen := s.generation
	s.mu.Unlock()
	s.notify()

	return s.deliver(ctx, gen, msg)
}

// deliver issues the create request for a pending entry and settles it.
func (s *Session) deliver(ctx context.Context, gen uint64, msg store.Message) error {
	saved := msg
	err := s.backend.SaveMessage(ctx, &saved)

	s.mu.Lock()
	if gen != s.generation {
		// The conversation was switched away; there is no entry to settle.
		s.mu.Unlock()
		if err != nil {
			return backendError("send message", err)
		}
		return nil
	}
	if err != nil {
		if e := s.findByRefLocked(msg.ClientRef); e != nil && e.status == StatusPending {
			e.status = StatusFailed
		}
		s.mu.Unlock()
		s.notify()
		s.log.Warn().
			Err(err).
			Str("conversation_id", msg.ConversationID).
			Str("client_ref", msg.ClientRef).
			Msg("failed to send message")
		return backendError("send message", err)
	}
	if saved.ClientRef == "" {
		saved.ClientRef = msg.ClientRef
	}
	s.appendLocked(saved)
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Session) pump(gen uint64, sub Subscription) {
	for msg := range sub.Events() {
		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			continue
		}
		changed := s.state == StateReady && msg.ConversationID == s.conversationID && s.appendLocked(msg)
		s.mu.Unlock()
		if changed {
			s.notify()
		}
	}
}

// appendLocked merges msg into the sequence by id and client reference.
func (s *Session) appendLocked(msg store.Message) bool {
	if msg.ID != 0 {
		if _, seen := s.ids[msg.ID]; seen {
			return false
		}
	}

	if msg.ClientRef != "" {
		if idx := slices.IndexFunc(s.entries, func(e *entry) bool {
			return e.msg.ClientRef == msg.ClientRef && e.msg.ID == 0
		}); idx >= 0 {
			s.entries = slices.Delete(s.entries, idx, idx+1)
		}
	}

	if msg.ID != 0 {
		s.ids[msg.ID] = struct{}{}
	}
	s.insertLocked(&entry{msg: msg, status: StatusSent})
	return true
}

// insertLocked keeps entries non-decreasing by CreatedAt; equal timestamps
// keep arrival order.
func (s *Session) insertLocked(e *entry) {
	i := len(s.entries)
	for i > 0 && s.entries[i-1].msg.CreatedAt.After(e.msg.CreatedAt) {
		i--
	}
	s.entries = slices.Insert(s.entries, i, e)
}

func (s *Session) findByRefLocked(clientRef string) *entry {
	if clientRef == "" {
		return nil
	}
	for _, e := range s.entries {
		if e.msg.ClientRef == clientRef {
			return e
		}
	}
	return nil
}

// detachLocked takes ownership of the live subscription away from the session.
func (s *Session) detachLocked() Subscription {
	prev := s.sub
	s.sub = nil
	s.entries = nil
	s.ids = make(map[int64]struct{})
	return prev
}

func (s *Session) resetLocked() {
	s.state = StateIdle
	s.conversationID = ""
	s.entries = nil
	s.ids = make(map[int64]struct{})
}

func (s *Session) closeSubscription(sub Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close subscription")
	}
}

func (s *Session) displayLocked() []DisplayMessage {
	out := make([]DisplayMessage, 0, len(s.entries))
	for _, e := range s.entries {
		d := Render(e.msg, s.userID)
		d.Status = e.status
		out = append(out, d)
	}
	return out
}

func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	view := View{
		ConversationID: s.conversationID,
		State:          s.state,
		Messages:       s.displayLocked(),
	}
	s.mu.Unlock()

	s.onChange(view)
}
