package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/repository"
	"github.com/vedran77/reviewhub/pkg/logger"
)

// TypingFunc receives the effective typing state of a pair.
type TypingFunc func(signal domain.TypingSignal)

type TypingService struct {
	typingRepo repository.TypingRepository
	staleAfter time.Duration
}

func NewTypingService(typingRepo repository.TypingRepository, staleAfter time.Duration) *TypingService {
	return &TypingService{typingRepo: typingRepo, staleAfter: staleAfter}
}

// SetTyping overwrites the signal for the ordered pair (from, to).
func (s *TypingService) SetTyping(ctx context.Context, from, to uuid.UUID, isTyping bool) error {
	if from == uuid.Nil || to == uuid.Nil {
		return ErrMissingParticipant
	}
	if from == to {
		return ErrSelfMessage
	}

	signal := domain.TypingSignal{
		FromUserID: from,
		ToUserID:   to,
		IsTyping:   isTyping,
		UpdatedAt:  time.Now(),
	}
	if err := s.typingRepo.Set(ctx, signal); err != nil {
		return fmt.Errorf("storing typing signal: %w", err)
	}
	return nil
}

// ObserveTyping reports the current state of (from, to) and every change after
// it. A true signal that is not refreshed within the stale window is reported
// as false. The feed ends when ctx is done or the returned func is called.
func (s *TypingService) ObserveTyping(ctx context.Context, from, to uuid.UUID, onChange TypingFunc) (realtime.Unsubscribe, error) {
	if from == uuid.Nil || to == uuid.Nil {
		return nil, ErrMissingParticipant
	}

	watchCtx, cancel := context.WithCancel(ctx)
	signals, err := s.typingRepo.Watch(watchCtx, from, to)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watching typing signal: %w", err)
	}

	current, err := s.typingRepo.Get(ctx, from, to)
	if err != nil {
		cancel()
		logger.Error().Err(err).Str("from", from.String()).Str("to", to.String()).Msg("typing: initial load failed")
		return nil, fmt.Errorf("loading typing signal: %w", err)
	}
	if current == nil {
		current = &domain.TypingSignal{FromUserID: from, ToUserID: to}
	}

	obs := &typingObserver{staleAfter: s.staleAfter, onChange: onChange}
	obs.deliver(*current, true)

	go func() {
		for signal := range signals {
			obs.deliver(signal, false)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			obs.close()
			cancel()
		})
	}, nil
}

type typingObserver struct {
	mu         sync.Mutex
	staleAfter time.Duration
	onChange   TypingFunc
	last       domain.TypingSignal
	timer      *time.Timer
	gen        uint64
	closed     atomic.Bool
}

func (o *typingObserver) deliver(signal domain.TypingSignal, initial bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() {
		return
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.gen++

	active := signal.Active(time.Now(), o.staleAfter)
	if active {
		gen := o.gen
		remaining := o.staleAfter - time.Since(signal.UpdatedAt)
		o.timer = time.AfterFunc(remaining, func() { o.expire(gen) })
	}

	changed := initial || active != o.last.IsTyping
	signal.IsTyping = active
	o.last = signal
	if changed {
		o.onChange(signal)
	}
}

func (o *typingObserver) expire(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() || gen != o.gen || !o.last.IsTyping {
		return
	}
	o.timer = nil
	o.last.IsTyping = false
	o.onChange(o.last)
}

func (o *typingObserver) close() {
	o.closed.Store(true)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}
