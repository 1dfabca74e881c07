package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/repository/memory"
)

type fixture struct {
	users    *memory.UserRepo
	messages *memory.MessageRepo
	broker   *realtime.Broker
	svc      *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    memory.NewUserRepo(),
		messages: memory.NewMessageRepo(),
		broker:   realtime.NewBroker(),
	}
	f.svc = NewMessageService(f.messages, f.users, f.broker)
	return f
}

func (f *fixture) addUser(t *testing.T, name string, lastLogin time.Time) uuid.UUID {
	t.Helper()
	u := domain.User{
		ID:        uuid.New(),
		Email:     name + "@example.com",
		Username:  name,
		Name:      name,
		Role:      domain.RoleUser,
		LastLogin: &lastLogin,
		CreatedAt: lastLogin,
	}
	require.NoError(t, f.users.Create(context.Background(), &u))
	return u.ID
}

func (f *fixture) send(t *testing.T, from, to uuid.UUID, text string) *domain.Message {
	t.Helper()
	msg, err := f.svc.Send(context.Background(), from, to, text)
	require.NoError(t, err)
	return msg
}

// recorder collects callback payloads for later assertions.
type recorder[T any] struct {
	ch chan T
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{ch: make(chan T, 64)}
}

func (r *recorder[T]) record(v T) {
	r.ch <- v
}

func (r *recorder[T]) next(t *testing.T) T {
	t.Helper()
	select {
	case v := <-r.ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		var zero T
		return zero
	}
}

func (r *recorder[T]) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case v := <-r.ch:
		t.Fatalf("unexpected callback: %v", v)
	case <-time.After(wait):
	}
}
