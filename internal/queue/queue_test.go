package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fluxretail/backend-pos/internal/queue"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestEnqueueAndProcess(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	enq := queue.Enqueuer{R: rdb, Prefix: "pos"}
	require.NoError(t, enq.Enqueue(ctx, queue.Task{Kind: "report.zsnapshot", Payload: []byte(`{"shiftId":"s1"}`)}))

	var got atomic.Value
	w := queue.Worker{
		R:      rdb,
		Prefix: "pos",
		Kind:   "report.zsnapshot",
		Handler: func(_ context.Context, payload []byte) error {
			got.Store(string(payload))
			return nil
		},
		Logger: zerolog.Nop(),
	}
	handled, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, handled)
	require.Equal(t, `{"shiftId":"s1"}`, got.Load())
}

func TestEnqueueDeduplicates(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	enq := queue.Enqueuer{R: rdb, DedupTTL: time.Minute}
	task := queue.Task{Kind: "report.zsnapshot", Payload: []byte(`{}`), IdempotencyKey: "shift-1"}
	require.NoError(t, enq.Enqueue(ctx, task))
	require.NoError(t, enq.Enqueue(ctx, task))

	var count atomic.Int32
	w := queue.Worker{
		R:    rdb,
		Kind: "report.zsnapshot",
		Handler: func(context.Context, []byte) error {
			count.Add(1)
			return nil
		},
		Logger: zerolog.Nop(),
	}
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count.Load())
}

func TestFailedTaskEndsOnDeadList(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	enq := queue.Enqueuer{R: rdb}
	require.NoError(t, enq.Enqueue(ctx, queue.Task{Kind: "report.zsnapshot", Payload: []byte(`{}`), MaxAttempts: 1}))

	w := queue.Worker{
		R:    rdb,
		Kind: "report.zsnapshot",
		Handler: func(context.Context, []byte) error {
			return errors.New("boom")
		},
		RetryBase: time.Millisecond,
		Logger:    zerolog.Nop(),
	}
	handled, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, handled)

	dead, err := w.DeadList(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
}

func TestRejectsInvalidKind(t *testing.T) {
	rdb := newRedis(t)
	err := queue.Enqueuer{R: rdb}.Enqueue(context.Background(), queue.Task{Kind: "Bad Kind!"})
	require.Error(t, err)
}
