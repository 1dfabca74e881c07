package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/repository"
	"github.com/vedran77/reviewhub/pkg/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
)

// ConversationFilter narrows the chat list. Query matches name or email
// case-insensitively; HistoryOnly hides partners without messages.
type ConversationFilter struct {
	Query       string `json:"query"`
	HistoryOnly bool   `json:"history_only"`
}

// ConversationsFunc receives the complete, filtered chat list.
type ConversationsFunc func([]domain.ConversationEntry)

type ConversationService struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	broker      *realtime.Broker
}

func NewConversationService(
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	broker *realtime.Broker,
) *ConversationService {
	return &ConversationService{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		broker:      broker,
	}
}

// List builds the chat list for viewer from fresh store snapshots.
func (s *ConversationService) List(ctx context.Context, viewer uuid.UUID, filter ConversationFilter) ([]domain.ConversationEntry, error) {
	if viewer == uuid.Nil {
		return nil, ErrMissingParticipant
	}

	var (
		users    []domain.User
		messages []domain.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.userRepo.List(gctx)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		messages, err = s.messageRepo.ListForUser(gctx, viewer)
		if err != nil {
			return fmt.Errorf("listing messages: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return FilterConversations(Aggregate(viewer, users, messages), filter), nil
}

// Watch emits the chat list now and again after every message or directory
// change that concerns viewer. Failed refreshes are logged and the previous
// list stays in place.
func (s *ConversationService) Watch(ctx context.Context, viewer uuid.UUID, filter ConversationFilter, onUpdate ConversationsFunc) (realtime.Unsubscribe, error) {
	if viewer == uuid.Nil {
		return nil, ErrMissingParticipant
	}

	watchCtx, cancel := context.WithCancel(ctx)
	kick := make(chan struct{}, 1)
	stop := s.broker.Subscribe(realtime.ViewerFilter(viewer), func(realtime.Event) {
		select {
		case kick <- struct{}{}:
		default:
		}
	})

	entries, err := s.List(ctx, viewer, filter)
	if err != nil {
		stop()
		cancel()
		logger.Error().Err(err).Str("viewer", viewer.String()).Msg("conversations: initial load failed")
		return nil, err
	}

	var closed atomic.Bool
	onUpdate(entries)

	go func() {
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-kick:
				entries, err := s.List(watchCtx, viewer, filter)
				if err != nil {
					if watchCtx.Err() == nil {
						logger.Error().Err(err).Str("viewer", viewer.String()).Msg("conversations: refresh failed")
					}
					continue
				}
				if !closed.Load() {
					onUpdate(entries)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			closed.Store(true)
			stop()
			cancel()
		})
	}, nil
}

// Aggregate builds one entry per directory user other than viewer. Entries
// with history come first, most recent conversation first; the rest keep
// directory order.
func Aggregate(viewer uuid.UUID, users []domain.User, messages []domain.Message) []domain.ConversationEntry {
	byPartner := make(map[uuid.UUID][]domain.Message)
	for _, m := range messages {
		if !m.Involves(viewer) || m.SenderID == m.ReceiverID {
			continue
		}
		partner := m.Partner(viewer)
		byPartner[partner] = append(byPartner[partner], m)
	}

	entries := make([]domain.ConversationEntry, 0, len(users))
	for i := range users {
		u := &users[i]
		if u.ID == viewer {
			continue
		}

		msgs := byPartner[u.ID]
		if msgs == nil {
			msgs = []domain.Message{}
		}
		SortMessages(msgs)

		entry := domain.ConversationEntry{
			User:       u.Profile(),
			HasHistory: len(msgs) > 0,
			Messages:   msgs,
		}
		if n := len(msgs); n > 0 {
			last := msgs[n-1]
			entry.LastMessage = &last
		}
		for j := range msgs {
			if msgs[j].UnreadFor(viewer) {
				entry.UnreadCount++
			}
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if a.HasHistory != b.HasHistory {
			return a.HasHistory
		}
		if a.HasHistory {
			return b.LastMessage.Before(a.LastMessage)
		}
		return false
	})
	return entries
}

// FilterConversations applies the search query and history toggle.
func FilterConversations(entries []domain.ConversationEntry, filter ConversationFilter) []domain.ConversationEntry {
	fold := cases.Fold()
	query := fold.String(strings.TrimSpace(filter.Query))

	out := make([]domain.ConversationEntry, 0, len(entries))
	for _, e := range entries {
		if filter.HistoryOnly && !e.HasHistory {
			continue
		}
		if query != "" &&
			!strings.Contains(fold.String(e.User.Name), query) &&
			!strings.Contains(fold.String(e.User.Email), query) {
			continue
		}
		out = append(out, e)
	}
	return out
}
