// Package redis keeps ephemeral presence state in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vedran77/reviewhub/internal/domain"
	"github.com/vedran77/reviewhub/pkg/logger"
)

// TypingRepo stores one key per ordered pair, overwritten in place, and
// publishes every write on a per-pair channel.
type TypingRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewTypingRepo creates a repo whose keys expire after ttl without writes.
func NewTypingRepo(client *goredis.Client, ttl time.Duration) *TypingRepo {
	return &TypingRepo{client: client, ttl: ttl}
}

func typingKey(from, to uuid.UUID) string {
	return fmt.Sprintf("typing:%s:%s", from, to)
}

func typingChannel(from, to uuid.UUID) string {
	return fmt.Sprintf("typing-events:%s:%s", from, to)
}

func (r *TypingRepo) Set(ctx context.Context, signal domain.TypingSignal) error {
	data, err := json.Marshal(signal)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, typingKey(signal.FromUserID, signal.ToUserID), data, r.ttl)
	pipe.Publish(ctx, typingChannel(signal.FromUserID, signal.ToUserID), data)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *TypingRepo) Get(ctx context.Context, from, to uuid.UUID) (*domain.TypingSignal, error) {
	data, err := r.client.Get(ctx, typingKey(from, to)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var signal domain.TypingSignal
	if err := json.Unmarshal(data, &signal); err != nil {
		return nil, err
	}
	return &signal, nil
}

// Watch subscribes before returning so no write after the call is missed.
func (r *TypingRepo) Watch(ctx context.Context, from, to uuid.UUID) (<-chan domain.TypingSignal, error) {
	sub := r.client.Subscribe(ctx, typingChannel(from, to))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribing to typing channel: %w", err)
	}

	out := make(chan domain.TypingSignal, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var signal domain.TypingSignal
				if err := json.Unmarshal([]byte(msg.Payload), &signal); err != nil {
					logger.Warn().Err(err).Str("channel", msg.Channel).Msg("redis: dropping malformed typing signal")
					continue
				}
				select {
				case out <- signal:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
