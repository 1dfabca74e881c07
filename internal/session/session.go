// Package session implements the two-party messaging view: live history in
// both directions, the partner's typing state, read receipts and sending.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/pkg/logger"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateClosed  State = "closed"
)

var (
	ErrClosed      = errors.New("session is closed")
	ErrNotReady    = errors.New("session is not open")
	ErrAlreadyOpen = errors.New("session is already open")
)

// MessageStore is the part of the message service a session needs.
type MessageStore interface {
	SubscribeDirected(ctx context.Context, from, to uuid.UUID, onUpdate service.MessagesFunc) (realtime.Unsubscribe, error)
	MarkRead(ctx context.Context, viewerID, otherUserID uuid.UUID) (int, error)
	Send(ctx context.Context, senderID, receiverID uuid.UUID, text string) (*domain.Message, error)
}

type TypingStore interface {
	SetTyping(ctx context.Context, from, to uuid.UUID, isTyping bool) error
	ObserveTyping(ctx context.Context, from, to uuid.UUID, onChange service.TypingFunc) (realtime.Unsubscribe, error)
}

// Listener receives session output. Any field may be nil.
type Listener struct {
	OnMessages func([]domain.Message)
	OnTyping   func(isTyping bool)
	OnState    func(State)
}

// SendError keeps the text that failed to send so the caller can offer a retry.
type SendError struct {
	Draft string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending message: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

type Session struct {
	viewer   uuid.UUID
	partner  uuid.UUID
	messages MessageStore
	typing   TypingStore
	listener Listener

	// emitMu serializes listener calls; mu guards the fields below.
	emitMu    sync.Mutex
	mu        sync.Mutex
	state     State
	sent      []domain.Message
	received  []domain.Message
	rendered  []domain.Message
	stops     []realtime.Unsubscribe
	indicator *Indicator
	lastErr   error
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(
	messages MessageStore,
	typing TypingStore,
	viewer, partner uuid.UUID,
	debounce time.Duration,
	listener Listener,
) *Session {
	s := &Session{
		viewer:   viewer,
		partner:  partner,
		messages: messages,
		typing:   typing,
		listener: listener,
		state:    StateIdle,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.indicator = NewIndicator(debounce, s.publishTyping)
	return s
}

func (s *Session) Partner() uuid.UUID { return s.partner }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns the merged conversation, oldest first.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.rendered...)
}

// Err returns the last send failure, cleared by the next successful send.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Open loads both directions of the conversation, starts watching the
// partner's typing state and marks the partner's messages read.
func (s *Session) Open(ctx context.Context) error {
	if s.viewer == uuid.Nil || s.partner == uuid.Nil {
		return service.ErrMissingParticipant
	}
	if s.viewer == s.partner {
		return service.ErrSelfMessage
	}

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case StateLoading, StateReady:
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.state = StateLoading
	s.mu.Unlock()
	s.emitState(StateLoading)

	sentStop, err := s.messages.SubscribeDirected(ctx, s.viewer, s.partner, func(msgs []domain.Message) {
		s.update(func() { s.sent = msgs })
	})
	if err != nil {
		return s.abort(err)
	}
	s.track(sentStop)

	recvStop, err := s.messages.SubscribeDirected(ctx, s.partner, s.viewer, func(msgs []domain.Message) {
		s.update(func() { s.received = msgs })
	})
	if err != nil {
		return s.abort(err)
	}
	s.track(recvStop)

	typingStop, err := s.typing.ObserveTyping(s.ctx, s.partner, s.viewer, func(signal domain.TypingSignal) {
		s.emit(func() {
			if s.listener.OnTyping != nil && s.State() != StateClosed {
				s.listener.OnTyping(signal.IsTyping)
			}
		})
	})
	if err != nil {
		return s.abort(err)
	}
	s.track(typingStop)

	if !s.transition(StateLoading, StateReady) {
		return ErrClosed
	}
	s.update(func() {})

	if _, err := s.messages.MarkRead(ctx, s.viewer, s.partner); err != nil {
		logger.Error().Err(err).
			Str("viewer", s.viewer.String()).
			Str("partner", s.partner.String()).
			Msg("session: mark read failed")
	}
	return nil
}

// MarkRead marks the partner's messages read, e.g. after new ones arrived
// while the session was open.
func (s *Session) MarkRead(ctx context.Context) (int, error) {
	if s.State() != StateReady {
		return 0, ErrNotReady
	}
	return s.messages.MarkRead(ctx, s.viewer, s.partner)
}

// Send stores text as a new message to the partner. On failure the returned
// *SendError carries the draft.
func (s *Session) Send(ctx context.Context, text string) (*domain.Message, error) {
	switch s.State() {
	case StateClosed:
		return nil, ErrClosed
	case StateReady:
	default:
		return nil, ErrNotReady
	}
	if strings.TrimSpace(text) == "" {
		return nil, service.ErrEmptyMessage
	}

	s.indicator.Sent()

	msg, err := s.messages.Send(ctx, s.viewer, s.partner, text)
	if err != nil {
		sendErr := &SendError{Draft: text, Err: err}
		s.mu.Lock()
		s.lastErr = sendErr
		s.mu.Unlock()
		return nil, sendErr
	}

	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	return msg, nil
}

// Input feeds the current contents of the compose field to the typing indicator.
func (s *Session) Input(text string) {
	if s.State() == StateReady {
		s.indicator.Input(text)
	}
}

func (s *Session) StartTyping() {
	if s.State() == StateReady {
		s.indicator.Start()
	}
}

func (s *Session) StopTyping() {
	s.indicator.Stop()
}

// Close tears down every feed and timer before returning. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()

	s.indicator.Close()
	for _, stop := range stops {
		stop()
	}
	s.cancel()

	s.emitState(StateClosed)
}

func (s *Session) track(stop realtime.Unsubscribe) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		stop()
		return
	}
	s.stops = append(s.stops, stop)
}

func (s *Session) abort(err error) error {
	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	closed := s.state == StateClosed
	if !closed {
		s.state = StateIdle
	}
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	if !closed {
		s.emitState(StateIdle)
	}
	logger.Error().Err(err).
		Str("viewer", s.viewer.String()).
		Str("partner", s.partner.String()).
		Msg("session: open failed")
	return err
}

func (s *Session) emitState(state State) {
	s.emit(func() {
		if s.listener.OnState != nil {
			s.listener.OnState(state)
		}
	})
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.mu.Unlock()

	s.emitState(to)
	return true
}

// update applies change and re-renders both directions merged by creation
// time. Nothing is rendered until the session is ready.
func (s *Session) update(change func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	change()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	merged := make([]domain.Message, 0, len(s.sent)+len(s.received))
	merged = append(merged, s.sent...)
	merged = append(merged, s.received...)
	service.SortMessages(merged)
	s.rendered = merged
	s.mu.Unlock()

	if s.listener.OnMessages != nil {
		s.listener.OnMessages(append([]domain.Message(nil), merged...))
	}
}

func (s *Session) emit(fn func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	fn()
}

func (s *Session) publishTyping(isTyping bool) {
	if err := s.typing.SetTyping(s.ctx, s.viewer, s.partner, isTyping); err != nil && s.ctx.Err() == nil {
		logger.Warn().Err(err).
			Str("viewer", s.viewer.String()).
			Str("partner", s.partner.String()).
			Bool("is_typing", isTyping).
			Msg("session: typing update failed")
	}
}
