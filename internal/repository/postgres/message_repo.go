package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/reviewhub/internal/domain"
)

const messageColumns = `id, sender_id, receiver_id, text, created_at, read`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Create inserts the message; created_at comes from the database clock.
func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, read`
	return r.pool.QueryRow(ctx, query, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text).
		Scan(&msg.CreatedAt, &msg.Read)
}

func (r *MessageRepo) ListBetween(ctx context.Context, a, b uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, a, b)
}

func (r *MessageRepo) ListDirected(ctx context.Context, from, to uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE sender_id = $1 AND receiver_id = $2
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, from, to)
}

func (r *MessageRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, userID)
}

// MarkRead is a single conditional UPDATE, so concurrent calls converge: a row
// already flipped by another caller no longer matches read = false.
func (r *MessageRepo) MarkRead(ctx context.Context, receiverID, senderID uuid.UUID) ([]domain.Message, error) {
	query := `
		UPDATE messages SET read = true
		WHERE receiver_id = $1 AND sender_id = $2 AND read = false
		RETURNING ` + messageColumns
	return r.list(ctx, query, receiverID, senderID)
}

func (r *MessageRepo) CountUnread(ctx context.Context, receiverID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE receiver_id = $1 AND read = false`, receiverID).Scan(&n)
	return n, err
}

func (r *MessageRepo) CountUnreadBySender(ctx context.Context, receiverID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sender_id, count(*)
		FROM messages
		WHERE receiver_id = $1 AND read = false
		GROUP BY sender_id`, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var sender uuid.UUID
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, err
		}
		counts[sender] = n
	}
	return counts, rows.Err()
}

func (r *MessageRepo) list(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		var m domain.Message
		err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.CreatedAt, &m.Read)
		return m, err
	})
}
