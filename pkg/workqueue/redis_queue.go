package workqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on top of redis.
//
// It uses the following keys:
//
//	<prefix>high      list of exit items
//	<prefix>normal    list of forward items
//	<prefix>delayed   sorted set of items keyed by NotBefore in milliseconds
//	<prefix>inflight  hash of dequeued items by id
//
// Values are JSON encoded work items.
type RedisQueue struct {
	client       redis.UniversalClient
	high         string
	normal       string
	delayed      string
	inflight     string
	pollInterval time.Duration
	logger       hclog.Logger
}

func NewRedisQueue(client redis.UniversalClient, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "zenexec:"
	}
	return &RedisQueue{
		client:       client,
		high:         prefix + "high",
		normal:       prefix + "normal",
		delayed:      prefix + "delayed",
		inflight:     prefix + "inflight",
		pollInterval: 200 * time.Millisecond,
		logger:       hclog.Default().Named("redis-queue"),
	}
}

var _ Queue = (*RedisQueue)(nil)

func (q *RedisQueue) Enqueue(ctx context.Context, item runtime.WorkItem) error {
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	data, err := EncodeItem(item)
	if err != nil {
		return err
	}
	if item.NotBefore.After(time.Now()) {
		return q.client.ZAdd(ctx, q.delayed, redis.Z{
			Score:  float64(item.NotBefore.UnixMilli()),
			Member: data,
		}).Err()
	}
	return q.client.LPush(ctx, q.listFor(item), data).Err()
}

func (q *RedisQueue) listFor(item runtime.WorkItem) string {
	if isExit(item) {
		return q.high
	}
	return q.normal
}

// promote moves delayed items that became eligible onto the ready lists.
// ZREM decides which consumer moves an item when several race for it.
func (q *RedisQueue) promote(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return err
	}
	for _, member := range due {
		removed, err := q.client.ZRem(ctx, q.delayed, member).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		item, err := DecodeItem([]byte(member))
		if err != nil {
			q.logger.Error("dropping undecodable delayed item", "err", err)
			continue
		}
		if err := q.client.LPush(ctx, q.listFor(item), member).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Dequeue pops from the high list before the normal one.
func (q *RedisQueue) Dequeue(ctx context.Context) (runtime.WorkItem, error) {
	for {
		if err := ctx.Err(); err != nil {
			return runtime.WorkItem{}, err
		}
		if err := q.promote(ctx); err != nil {
			return runtime.WorkItem{}, q.wrap(ctx, err)
		}

		res, err := q.client.BRPop(ctx, q.pollInterval, q.high, q.normal).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return runtime.WorkItem{}, q.wrap(ctx, err)
		}
		if len(res) != 2 {
			q.logger.Warn("BRPop returned unexpected result", "result", res)
			continue
		}

		data := []byte(res[1])
		item, err := DecodeItem(data)
		if err != nil {
			q.logger.Error("dropping undecodable item", "err", err)
			continue
		}
		if err := q.client.HSet(ctx, q.inflight, item.Id, data).Err(); err != nil {
			return runtime.WorkItem{}, q.wrap(ctx, err)
		}
		return item, nil
	}
}

func (q *RedisQueue) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("redis queue: %w", err)
}

func (q *RedisQueue) Ack(ctx context.Context, item runtime.WorkItem) error {
	n, err := q.client.HDel(ctx, q.inflight, item.Id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownItem
	}
	return nil
}

func (q *RedisQueue) Nack(ctx context.Context, item runtime.WorkItem, delay time.Duration) error {
	n, err := q.client.HDel(ctx, q.inflight, item.Id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownItem
	}
	item.Attempts++
	item.NotBefore = time.Now().Add(delay)
	return q.Enqueue(ctx, item)
}

// Recover puts every in flight item back on the ready lists. It is meant to
// be called on startup, before any worker dequeues.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	pending, err := q.client.HGetAll(ctx, q.inflight).Result()
	if err != nil {
		return 0, err
	}
	recovered := 0
	for id, data := range pending {
		item, err := DecodeItem([]byte(data))
		if err != nil {
			q.logger.Error("dropping undecodable in flight item", "id", id, "err", err)
			q.client.HDel(ctx, q.inflight, id)
			continue
		}
		_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, q.inflight, id)
			pipe.LPush(ctx, q.listFor(item), data)
			return nil
		})
		if err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

func (q *RedisQueue) Len() int {
	ctx := context.Background()
	var high, normal, delayed *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		high = pipe.LLen(ctx, q.high)
		normal = pipe.LLen(ctx, q.normal)
		delayed = pipe.ZCard(ctx, q.delayed)
		return nil
	})
	if err != nil {
		q.logger.Warn("Len failed", "err", err)
		return 0
	}
	return int(high.Val() + normal.Val() + delayed.Val())
}
