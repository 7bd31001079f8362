package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Task represents a job to be processed asynchronously.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	MaxAttempts    int
	Delay          time.Duration
}

type taskMessage struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload,omitempty"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
	AvailableAt int64  `json:"availableAt"`
}

// Enqueuer publishes tasks to Redis backed queues.
type Enqueuer struct {
	R        *redis.Client
	Prefix   string
	DedupTTL time.Duration
}

// Enqueue inserts the task into its kind's queue. If an idempotency key is
// supplied the task is only enqueued once within the deduplication window.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) error {
	if e.R == nil {
		return errors.New("queue: redis client not configured")
	}
	kind := sanitizeKind(t.Kind)
	if kind == "" {
		return errors.New("queue: task kind is required")
	}
	msg := taskMessage{
		Kind:        kind,
		Key:         t.IdempotencyKey,
		Payload:     t.Payload,
		MaxAttempts: t.MaxAttempts,
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = 5
	}
	msg.AvailableAt = time.Now().Add(t.Delay).UnixNano()

	if msg.Key != "" {
		ttl := e.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := e.R.SetNX(ctx, dedupKey(e.Prefix, kind, msg.Key), "1", ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return e.R.ZAdd(ctx, queueKey(e.Prefix, kind), redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
}

// Handler processes one task payload.
type Handler func(ctx context.Context, payload []byte) error

// Worker consumes tasks for a single kind. Failed tasks are retried with a
// linear backoff until MaxAttempts, then parked on a dead list.
type Worker struct {
	R         *redis.Client
	Prefix    string
	Kind      string
	Handler   Handler
	RetryBase time.Duration
	Logger    zerolog.Logger
}

// RunOnce drains all currently due tasks and reports how many were handled.
func (w Worker) RunOnce(ctx context.Context) (int, error) {
	if w.R == nil {
		return 0, errors.New("queue: worker redis client not configured")
	}
	if w.Handler == nil {
		return 0, errors.New("queue: worker handler not configured")
	}
	kind := sanitizeKind(w.Kind)
	if kind == "" {
		return 0, errors.New("queue: worker kind is required")
	}
	key := queueKey(w.Prefix, kind)
	handled := 0
	for {
		res, err := w.R.ZPopMin(ctx, key, 1).Result()
		if err != nil {
			if err == redis.Nil {
				return handled, nil
			}
			return handled, err
		}
		if len(res) == 0 {
			return handled, nil
		}
		member, ok := res[0].Member.(string)
		if !ok {
			continue
		}
		var msg taskMessage
		if err := json.Unmarshal([]byte(member), &msg); err != nil {
			w.Logger.Warn().Err(err).Str("kind", kind).Msg("drop undecodable task")
			continue
		}
		if msg.AvailableAt > time.Now().UnixNano() {
			// Not due yet, push it back untouched.
			_ = w.R.ZAdd(ctx, key, redis.Z{Score: float64(msg.AvailableAt), Member: member}).Err()
			return handled, nil
		}
		if err := w.Handler(ctx, msg.Payload); err != nil {
			w.retry(ctx, key, msg, err)
			continue
		}
		handled++
	}
}

// Run polls for due tasks until the context is cancelled.
func (w Worker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.Logger.Error().Err(err).Str("kind", w.Kind).Msg("queue worker pass failed")
			}
		}
	}
}

func (w Worker) retry(ctx context.Context, key string, msg taskMessage, cause error) {
	msg.Attempt++
	if msg.Attempt >= msg.MaxAttempts {
		w.Logger.Error().Err(cause).Str("kind", msg.Kind).Int("attempts", msg.Attempt).Msg("task moved to dead list")
		raw, err := json.Marshal(msg)
		if err != nil {
			return
		}
		_ = w.R.RPush(ctx, deadKey(w.Prefix, msg.Kind), raw).Err()
		return
	}
	base := w.RetryBase
	if base <= 0 {
		base = time.Second
	}
	msg.AvailableAt = time.Now().Add(base * time.Duration(msg.Attempt)).UnixNano()
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = w.R.ZAdd(ctx, key, redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
}

// DeadList returns the parked payloads for a kind, most recent last.
func (w Worker) DeadList(ctx context.Context, limit int64) ([][]byte, error) {
	if w.R == nil {
		return nil, errors.New("queue: worker redis client not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := w.R.LRange(ctx, deadKey(w.Prefix, sanitizeKind(w.Kind)), -limit, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(rows))
	for _, row := range rows {
		out = append(out, []byte(row))
	}
	return out, nil
}

func queueKey(prefix, kind string) string {
	if prefix == "" {
		return fmt.Sprintf("queue:%s", kind)
	}
	return fmt.Sprintf("%s:queue:%s", prefix, kind)
}

func dedupKey(prefix, kind, key string) string {
	if prefix == "" {
		return fmt.Sprintf("queue:dedup:%s:%s", kind, key)
	}
	return fmt.Sprintf("%s:dedup:%s:%s", prefix, kind, key)
}

func deadKey(prefix, kind string) string {
	if prefix == "" {
		return fmt.Sprintf("queue:dead:%s", kind)
	}
	return fmt.Sprintf("%s:dead:%s", prefix, kind)
}

func sanitizeKind(kind string) string {
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		if c >= 'a' && c <= 'z' {
			continue
		}
		if c >= '0' && c <= '9' {
			continue
		}
		if c == '-' || c == '_' || c == ':' || c == '.' {
			continue
		}
		return ""
	}
	return kind
}
