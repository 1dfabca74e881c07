package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// List returns the whole directory ordered by last login, most recent first.
	List(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	TouchLastLogin(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type MessageRepository interface {
	// Create stores msg, assigning ID when empty and the server timestamp.
	Create(ctx context.Context, msg *domain.Message) error
	// ListBetween returns messages exchanged by a and b, oldest first.
	ListBetween(ctx context.Context, a, b uuid.UUID) ([]domain.Message, error)
	// ListDirected returns messages sent by from to to, oldest first.
	ListDirected(ctx context.Context, from, to uuid.UUID) ([]domain.Message, error)
	// ListForUser returns every message userID sent or received, oldest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Message, error)
	// MarkRead flips unread messages from sender to receiver and returns the flipped rows.
	MarkRead(ctx context.Context, receiverID, senderID uuid.UUID) ([]domain.Message, error)
	CountUnread(ctx context.Context, receiverID uuid.UUID) (int, error)
	CountUnreadBySender(ctx context.Context, receiverID uuid.UUID) (map[uuid.UUID]int, error)
}

type TypingRepository interface {
	// Set upserts the signal for (FromUserID, ToUserID); last write wins.
	Set(ctx context.Context, signal domain.TypingSignal) error
	// Get returns the stored signal, or nil when none exists.
	Get(ctx context.Context, from, to uuid.UUID) (*domain.TypingSignal, error)
	// Watch streams signals written for (from, to) until ctx is done.
	Watch(ctx context.Context, from, to uuid.UUID) (<-chan domain.TypingSignal, error)
}

type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	// AppendReview atomically adds review, recomputes the average rating and
	// returns the updated product, or nil when the product does not exist.
	AppendReview(ctx context.Context, id string, review domain.Review) (*domain.Product, error)
	Delete(ctx context.Context, id string) (bool, error)
}
