package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"clubinex/config"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const jobDataField = "data"

type redisBroker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBroker stores queue state in redis. Job hashes expire after
// queue.jobTTL so abandoned state does not pile up.
func NewRedisBroker(client *redis.Client, cfg *config.Config) Broker {
	return &redisBroker{
		client: client,
		ttl:    cfg.Queue.JobTTL,
	}
}

func readyKey(queue string) string {
	return "queue:" + queue + ":ready"
}

func delayedKey(queue string) string {
	return "queue:" + queue + ":delayed"
}

// processingKey lists the IDs handed to consumers and not yet settled.
func processingKey(queue string) string {
	return "queue:" + queue + ":processing"
}

// leaseKey scores in-flight IDs by lease deadline in unix milliseconds.
func leaseKey(queue string) string {
	return "queue:" + queue + ":leases"
}

func jobKey(queue, id string) string {
	return "queue:" + queue + ":job:" + id
}

func (b *redisBroker) Push(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := jobKey(msg.Queue, msg.ID)
		pipe.HSet(ctx, key, jobDataField, data)
		pipe.Expire(ctx, key, b.ttl)
		pipe.LPush(ctx, readyKey(msg.Queue), msg.ID)

		return nil
	})

	return errors.Wrap(err, "failed to push job")
}

func (b *redisBroker) Pop(ctx context.Context, queue string, timeout time.Duration, leaseUntil time.Time) (*Message, error) {
	// BLMOVE keeps the ID in the processing list until the job is settled, so
	// a worker that dies mid-job leaves it there for Reclaim.
	id, err := b.client.BLMove(ctx, readyKey(queue), processingKey(queue), "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}

		return nil, errors.Wrap(err, "failed to pop job")
	}

	if err := b.client.ZAdd(ctx, leaseKey(queue), redis.Z{Score: unixMilli(leaseUntil), Member: id}).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to lease job %s", id)
	}

	msg, err := b.load(ctx, queue, id)
	if errors.Is(err, ErrJobExpired) {
		b.release(ctx, queue, id)
	}

	return msg, err
}

func (b *redisBroker) Delete(ctx context.Context, msg *Message) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, jobKey(msg.Queue, msg.ID))
		pipe.LRem(ctx, processingKey(msg.Queue), 0, msg.ID)
		pipe.ZRem(ctx, leaseKey(msg.Queue), msg.ID)

		return nil
	})

	return errors.Wrap(err, "failed to delete job")
}

func (b *redisBroker) Defer(ctx context.Context, msg *Message, runAt time.Time) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := jobKey(msg.Queue, msg.ID)
		pipe.HSet(ctx, key, jobDataField, data)
		pipe.Expire(ctx, key, b.ttl)
		pipe.ZAdd(ctx, delayedKey(msg.Queue), redis.Z{
			Score:  unixMilli(runAt),
			Member: msg.ID,
		})
		pipe.LRem(ctx, processingKey(msg.Queue), 0, msg.ID)
		pipe.ZRem(ctx, leaseKey(msg.Queue), msg.ID)

		return nil
	})

	return errors.Wrap(err, "failed to defer job")
}

func (b *redisBroker) PromoteDue(ctx context.Context, queue string, now time.Time) (int, error) {
	ids, err := b.client.ZRangeByScore(ctx, delayedKey(queue), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read delayed jobs")
	}

	promoted := 0
	for _, id := range ids {
		// ZREM decides which scheduler instance owns the promotion.
		removed, err := b.client.ZRem(ctx, delayedKey(queue), id).Result()
		if err != nil {
			return promoted, errors.Wrapf(err, "failed to remove delayed job %s", id)
		}
		if removed == 0 {
			continue
		}

		if err := b.client.LPush(ctx, readyKey(queue), id).Err(); err != nil {
			return promoted, errors.Wrapf(err, "failed to promote job %s", id)
		}
		promoted++
	}

	return promoted, nil
}

func (b *redisBroker) Reclaim(ctx context.Context, queue string, now, leaseUntil time.Time) ([]*Message, error) {
	inflight, err := b.client.LRange(ctx, processingKey(queue), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read in-flight jobs")
	}
	// A worker that died between BLMOVE and ZADD left no lease behind.
	for _, id := range inflight {
		orphan := redis.Z{Score: unixMilli(leaseUntil), Member: id}
		if err := b.client.ZAddNX(ctx, leaseKey(queue), orphan).Err(); err != nil {
			return nil, errors.Wrapf(err, "failed to lease orphaned job %s", id)
		}
	}

	ids, err := b.client.ZRangeByScore(ctx, leaseKey(queue), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read expired leases")
	}

	var loadErr error
	reclaimed := make([]*Message, 0, len(ids))
	for _, id := range ids {
		// ZREM decides which scheduler instance owns the reclaim.
		removed, err := b.client.ZRem(ctx, leaseKey(queue), id).Result()
		if err != nil {
			return reclaimed, errors.Wrapf(err, "failed to claim lease of job %s", id)
		}
		if removed == 0 {
			continue
		}

		msg, err := b.load(ctx, queue, id)
		if errors.Is(err, ErrJobExpired) {
			b.release(ctx, queue, id)

			continue
		}
		if err != nil {
			// Lease it again so the job is retried on a later tick.
			b.client.ZAdd(ctx, leaseKey(queue), redis.Z{Score: unixMilli(leaseUntil), Member: id})
			if loadErr == nil {
				loadErr = err
			}

			continue
		}
		reclaimed = append(reclaimed, msg)
	}

	return reclaimed, loadErr
}

func (b *redisBroker) Depth(ctx context.Context, queue string) (ready, delayed int64, err error) {
	pipe := b.client.Pipeline()
	readyCmd := pipe.LLen(ctx, readyKey(queue))
	delayedCmd := pipe.ZCard(ctx, delayedKey(queue))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, errors.Wrap(err, "failed to read queue depth")
	}

	return readyCmd.Val(), delayedCmd.Val(), nil
}

func (b *redisBroker) load(ctx context.Context, queue, id string) (*Message, error) {
	data, err := b.client.HGet(ctx, jobKey(queue, id), jobDataField).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Wrapf(ErrJobExpired, "job %s", id)
		}

		return nil, errors.Wrapf(err, "failed to load job %s", id)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode job %s", id)
	}

	return &msg, nil
}

// release forgets an in-flight ID whose state is gone. A failure leaves the ID
// for the next Reclaim, which drops it again.
func (b *redisBroker) release(ctx context.Context, queue, id string) {
	_, _ = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, processingKey(queue), 0, id)
		pipe.ZRem(ctx, leaseKey(queue), id)

		return nil
	})
}

func unixMilli(t time.Time) float64 {
	return float64(t.UnixMilli())
}
