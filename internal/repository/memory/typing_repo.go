package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/domain"
)

type typingPair struct {
	from, to uuid.UUID
}

type TypingRepo struct {
	mu       sync.Mutex
	signals  map[typingPair]domain.TypingSignal
	watchers map[typingPair]map[chan domain.TypingSignal]struct{}
}

func NewTypingRepo() *TypingRepo {
	return &TypingRepo{
		signals:  make(map[typingPair]domain.TypingSignal),
		watchers: make(map[typingPair]map[chan domain.TypingSignal]struct{}),
	}
}

func (r *TypingRepo) Set(_ context.Context, signal domain.TypingSignal) error {
	key := typingPair{signal.FromUserID, signal.ToUserID}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.signals[key] = signal
	for ch := range r.watchers[key] {
		select {
		case ch <- signal:
		default:
			// slow watcher; it will catch up on the next write
		}
	}
	return nil
}

func (r *TypingRepo) Get(_ context.Context, from, to uuid.UUID) (*domain.TypingSignal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.signals[typingPair{from, to}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *TypingRepo) Watch(ctx context.Context, from, to uuid.UUID) (<-chan domain.TypingSignal, error) {
	key := typingPair{from, to}
	ch := make(chan domain.TypingSignal, 16)

	r.mu.Lock()
	if r.watchers[key] == nil {
		r.watchers[key] = make(map[chan domain.TypingSignal]struct{})
	}
	r.watchers[key][ch] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.watchers[key], ch)
		if len(r.watchers[key]) == 0 {
			delete(r.watchers, key)
		}
		close(ch)
		r.mu.Unlock()
	}()
	return ch, nil
}
