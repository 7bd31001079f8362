package report

import (
	"context"
	"encoding/json"

	"github.com/fluxretail/backend-pos/internal/events"
	"github.com/fluxretail/backend-pos/internal/queue"
)

// TaskKindZSnapshot is the queue kind for Z report precomputation.
const TaskKindZSnapshot = "report.zsnapshot"

// Scheduler turns shift close events into snapshot tasks. It implements
// events.Scheduler and ignores every other topic.
type Scheduler struct {
	Enq queue.Enqueuer
}

// Schedule enqueues a snapshot task for closed shifts, deduplicated per shift.
func (s Scheduler) Schedule(ctx context.Context, event events.Event) error {
	if event.Topic != events.TopicShiftClosed {
		return nil
	}
	payload, err := json.Marshal(snapshotPayload{ShiftID: event.AggregateID})
	if err != nil {
		return err
	}
	return s.Enq.Enqueue(ctx, queue.Task{
		Kind:           TaskKindZSnapshot,
		Payload:        payload,
		IdempotencyKey: event.AggregateID.String(),
	})
}
