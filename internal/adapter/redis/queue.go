package redisadapter

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Queue is a redis-list-backed message queue. Push appends with LPUSH,
// Pop blocks on BRPOP. Delivery is at-least-once in the same sense the rest
// of the engine assumes: a crash after Pop but before the handler commits
// loses nothing remotely, because every handler is an idempotent upsert
// re-enqueued by the next trigger.
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

func (q *Queue) Push(ctx context.Context, payload []byte) error {
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *Queue) Pop(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, false, nil
	}
	return []byte(res[1]), true, nil
}
