// Package unread keeps a viewer's global unread badge in sync with the message store.
package unread

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/pkg/logger"
)

type Status struct {
	Count     int  `json:"count"`
	HasUnread bool `json:"has_unread"`
}

type Counter interface {
	UnreadCountFor(ctx context.Context, viewerID uuid.UUID) (int, error)
}

type Config struct {
	// PollInterval adds a periodic recount on top of push updates. Zero disables polling.
	PollInterval time.Duration
	// PollJitter is the upper bound of a random delay added to every poll.
	PollJitter time.Duration
}

// Watcher recounts the viewer's unread messages whenever a message addressed
// to them is created or read, and reports the status when it changes. The
// count always comes from the store.
type Watcher struct {
	counter  Counter
	broker   *realtime.Broker
	viewer   uuid.UUID
	cfg      Config
	onChange func(Status)

	mu      sync.Mutex
	status  Status
	known   bool
	stop    realtime.Unsubscribe
	cancel  context.CancelFunc
	done    chan struct{}
	kick    chan struct{}
	started bool
}

func NewWatcher(counter Counter, broker *realtime.Broker, viewer uuid.UUID, cfg Config, onChange func(Status)) *Watcher {
	return &Watcher{
		counter:  counter,
		broker:   broker,
		viewer:   viewer,
		cfg:      cfg,
		onChange: onChange,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start reports the current status and begins watching. It fails only if
// the first count fails.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	w.stop = w.broker.Subscribe(realtime.InboxFilter(w.viewer), func(realtime.Event) {
		w.Refresh()
	})

	if err := w.recount(ctx); err != nil {
		w.stop()
		close(w.done)
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(loopCtx)
	return nil
}

// Refresh schedules a recount without blocking.
func (w *Watcher) Refresh() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Stop ends the subscription and the poll timer and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return
	}

	if w.stop != nil {
		w.stop()
	}
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var poll <-chan time.Time
	var timer *time.Timer
	if w.cfg.PollInterval > 0 {
		timer = time.NewTimer(w.nextPoll())
		defer timer.Stop()
		poll = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.kick:
		case <-poll:
			timer.Reset(w.nextPoll())
		}
		if err := w.recount(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Str("viewer", w.viewer.String()).Msg("unread: recount failed")
		}
	}
}

func (w *Watcher) nextPoll() time.Duration {
	d := w.cfg.PollInterval
	if w.cfg.PollJitter > 0 {
		d += rand.N(w.cfg.PollJitter)
	}
	return d
}

func (w *Watcher) recount(ctx context.Context) error {
	n, err := w.counter.UnreadCountFor(ctx, w.viewer)
	if err != nil {
		return err
	}

	status := Status{Count: n, HasUnread: n > 0}
	w.mu.Lock()
	changed := !w.known || status != w.status
	w.status = status
	w.known = true
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange(status)
	}
	return nil
}
