package unread

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/repository/memory"
	"github.com/vedran77/reviewhub/internal/service"
)

type statusLog struct {
	mu  sync.Mutex
	got []Status
}

func (l *statusLog) record(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, s)
}

func (l *statusLog) all() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Status(nil), l.got...)
}

func (l *statusLog) last() Status {
	all := l.all()
	if len(all) == 0 {
		return Status{Count: -1}
	}
	return all[len(all)-1]
}

func setup(t *testing.T) (*service.MessageService, *realtime.Broker, uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	broker := realtime.NewBroker()
	users := memory.NewUserRepo()
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		now := time.Now()
		u := domain.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Username: uuid.NewString(), LastLogin: &now}
		require.NoError(t, users.Create(context.Background(), &u))
		ids[i] = u.ID
	}
	return service.NewMessageService(memory.NewMessageRepo(), users, broker), broker, ids[0], ids[1], ids[2]
}

func TestWatcher_PushesRecountedStatus(t *testing.T) {
	messages, broker, viewer, alice, bob := setup(t)
	ctx := context.Background()

	var log statusLog
	w := NewWatcher(messages, broker, viewer, Config{}, log.record)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	assert.Equal(t, []Status{{Count: 0, HasUnread: false}}, log.all())

	for i := 0; i < 3; i++ {
		_, err := messages.Send(ctx, alice, viewer, "hi")
		require.NoError(t, err)
	}
	_, err := messages.Send(ctx, bob, viewer, "yo")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return log.last() == Status{Count: 4, HasUnread: true} }, time.Second, 5*time.Millisecond)

	// messages the viewer sends do not touch the badge
	before := len(log.all())
	_, err = messages.Send(ctx, viewer, alice, "reply")
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, log.all(), before)

	_, err = messages.MarkRead(ctx, viewer, alice)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return log.last() == Status{Count: 1, HasUnread: true} }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Status{Count: 1, HasUnread: true}, w.Status())
}

type flakyCounter struct {
	calls atomic.Int32
	count atomic.Int32
	fail  atomic.Bool
}

func (c *flakyCounter) UnreadCountFor(context.Context, uuid.UUID) (int, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return 0, errors.New("store unavailable")
	}
	return int(c.count.Load()), nil
}

func TestWatcher_PollsWhenConfigured(t *testing.T) {
	counter := &flakyCounter{}
	counter.count.Store(2)

	var log statusLog
	w := NewWatcher(counter, realtime.NewBroker(), uuid.New(), Config{PollInterval: 20 * time.Millisecond, PollJitter: 5 * time.Millisecond}, log.record)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	counter.count.Store(5)
	assert.Eventually(t, func() bool { return log.last().Count == 5 }, time.Second, 5*time.Millisecond)

	// a failing recount keeps the last known status
	counter.fail.Store(true)
	calls := counter.calls.Load()
	assert.Eventually(t, func() bool { return counter.calls.Load() > calls+1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Status{Count: 5, HasUnread: true}, w.Status())
}

func TestWatcher_StopEndsPolling(t *testing.T) {
	counter := &flakyCounter{}
	w := NewWatcher(counter, realtime.NewBroker(), uuid.New(), Config{PollInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
	calls := counter.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, counter.calls.Load())
}

func TestWatcher_StartFailure(t *testing.T) {
	counter := &flakyCounter{}
	counter.fail.Store(true)
	broker := realtime.NewBroker()

	w := NewWatcher(counter, broker, uuid.New(), Config{}, nil)
	require.Error(t, w.Start(context.Background()))
	assert.Zero(t, broker.SubscriberCount())
	w.Stop()
}
