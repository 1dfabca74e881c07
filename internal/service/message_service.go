package service

import (
	"context"
	"errors"
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
	"github.com/vedran77/reviewhub/pkg/validator"
)

var (
	ErrEmptyMessage       = errors.New("message text cannot be empty")
	ErrMessageTooLong     = errors.New("message text is too long")
	ErrMissingParticipant = errors.New("sender and receiver are required")
	ErrSelfMessage        = errors.New("cannot send a message to yourself")
)

// MessagesFunc receives the complete, ordered message list of a feed.
type MessagesFunc func([]domain.Message)

type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	broker      *realtime.Broker
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	broker *realtime.Broker,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		broker:      broker,
	}
}

// Send validates and stores a message. The store assigns the id and timestamp.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, text string) (*domain.Message, error) {
	if senderID == uuid.Nil || receiverID == uuid.Nil {
		return nil, ErrMissingParticipant
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > validator.MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	receiver, err := s.userRepo.GetByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("looking up receiver: %w", err)
	}
	if receiver == nil {
		return nil, ErrUserNotFound
	}

	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}

	s.broker.Publish(realtime.Event{Type: realtime.MessageCreated, Message: msg})
	return msg, nil
}

// Subscribe feeds onUpdate every message exchanged by a and b, oldest first,
// once after the initial load and again after every insert or read receipt.
func (s *MessageService) Subscribe(ctx context.Context, a, b uuid.UUID, onUpdate MessagesFunc) (realtime.Unsubscribe, error) {
	if a == uuid.Nil || b == uuid.Nil {
		return nil, ErrMissingParticipant
	}
	return s.subscribe(ctx, realtime.PairFilter(a, b), func(ctx context.Context) ([]domain.Message, error) {
		return s.messageRepo.ListBetween(ctx, a, b)
	}, onUpdate)
}

// SubscribeDirected is Subscribe restricted to messages sent by from to to.
func (s *MessageService) SubscribeDirected(ctx context.Context, from, to uuid.UUID, onUpdate MessagesFunc) (realtime.Unsubscribe, error) {
	if from == uuid.Nil || to == uuid.Nil {
		return nil, ErrMissingParticipant
	}
	return s.subscribe(ctx, realtime.DirectedFilter(from, to), func(ctx context.Context) ([]domain.Message, error) {
		return s.messageRepo.ListDirected(ctx, from, to)
	}, onUpdate)
}

func (s *MessageService) subscribe(
	ctx context.Context,
	filter realtime.Filter,
	load func(context.Context) ([]domain.Message, error),
	onUpdate MessagesFunc,
) (realtime.Unsubscribe, error) {
	f := &feed{byID: make(map[uuid.UUID]domain.Message), onUpdate: onUpdate}

	// Register before loading so nothing committed in between is missed.
	stop := s.broker.Subscribe(filter, func(evt realtime.Event) {
		f.apply(*evt.Message)
	})

	initial, err := load(ctx)
	if err != nil {
		stop()
		logger.Error().Err(err).Msg("message feed: initial load failed")
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	f.start(initial)

	return func() {
		f.closed.Store(true)
		stop()
	}, nil
}

// feed merges store snapshots and change events by message id and emits the
// sorted result. Emissions for one feed never overlap.
type feed struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]domain.Message
	loaded   bool
	closed   atomic.Bool
	onUpdate MessagesFunc
}

func (f *feed) start(initial []domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range initial {
		f.merge(m)
	}
	f.loaded = true
	f.emit()
}

func (f *feed) apply(m domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.merge(m)
	if f.loaded {
		f.emit()
	}
}

// merge keeps read monotonic: a stale copy never clears a read flag.
func (f *feed) merge(m domain.Message) {
	if prev, ok := f.byID[m.ID]; ok && prev.Read {
		m.Read = true
	}
	f.byID[m.ID] = m
}

func (f *feed) emit() {
	if f.closed.Load() {
		return
	}
	out := make([]domain.Message, 0, len(f.byID))
	for _, m := range f.byID {
		out = append(out, m)
	}
	SortMessages(out)
	f.onUpdate(out)
}

// SortMessages orders messages by creation time, oldest first.
func SortMessages(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Before(&msgs[j]) })
}

// MarkRead marks every unread message from otherUserID to viewerID as read and
// returns how many changed. Repeating the call is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, viewerID, otherUserID uuid.UUID) (int, error) {
	if viewerID == uuid.Nil || otherUserID == uuid.Nil {
		return 0, ErrMissingParticipant
	}

	flipped, err := s.messageRepo.MarkRead(ctx, viewerID, otherUserID)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}

	for i := range flipped {
		s.broker.Publish(realtime.Event{Type: realtime.MessageRead, Message: &flipped[i]})
	}
	return len(flipped), nil
}

// UnreadCountFor counts unread messages addressed to viewerID across all partners.
func (s *MessageService) UnreadCountFor(ctx context.Context, viewerID uuid.UUID) (int, error) {
	if viewerID == uuid.Nil {
		return 0, ErrMissingParticipant
	}
	n, err := s.messageRepo.CountUnread(ctx, viewerID)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return n, nil
}

func (s *MessageService) UnreadCountsByPartner(ctx context.Context, viewerID uuid.UUID) (map[uuid.UUID]int, error) {
	if viewerID == uuid.Nil {
		return nil, ErrMissingParticipant
	}
	counts, err := s.messageRepo.CountUnreadBySender(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("counting unread messages: %w", err)
	}
	return counts, nil
}

// History returns the conversation between viewer and partner, oldest first.
func (s *MessageService) History(ctx context.Context, viewerID, partnerID uuid.UUID) ([]domain.Message, error) {
	if viewerID == uuid.Nil || partnerID == uuid.Nil {
		return nil, ErrMissingParticipant
	}
	msgs, err := s.messageRepo.ListBetween(ctx, viewerID, partnerID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// Timeline returns every message viewerID sent or received.
func (s *MessageService) Timeline(ctx context.Context, viewerID uuid.UUID) ([]domain.Message, error) {
	msgs, err := s.messageRepo.ListForUser(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}
