package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ilkhomjon13/YN2/internal/domain"
)

// RedisBroadcastQueue реализует очередь рассылок на базе Redis lists.
type RedisBroadcastQueue struct {
	client *redis.Client
	key    string
}

// NewRedisBroadcastQueue создаёт очередь по указанному ключу.
func NewRedisBroadcastQueue(client *redis.Client, key string) *RedisBroadcastQueue {
	return &RedisBroadcastQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisBroadcastQueue) Enqueue(ctx context.Context, job domain.BroadcastJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RedisBroadcastQueue) Pop(ctx context.Context) (domain.BroadcastJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.BroadcastJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.BroadcastJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.BroadcastJob{}, err
		}
		if len(res) != 2 {
			return domain.BroadcastJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.BroadcastJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.BroadcastJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}
