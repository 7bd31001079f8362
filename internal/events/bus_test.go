package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fluxretail/backend-pos/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastPayload []byte
	failWith    error
}

func (s *stubStore) InsertEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	s.lastTopic = topic
	s.lastPayload = payload
	if s.failWith != nil {
		return events.Event{}, s.failWith
	}
	return events.Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureScheduler struct {
	events []events.Event
}

func (c *captureScheduler) Schedule(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsAndFansOut(t *testing.T) {
	store := &stubStore{}
	sched := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := &events.Bus{Store: store, Scheduler: sched, Notifiers: []events.Notifier{notifier}}

	txID := uuid.New()
	ev, err := bus.Emit(context.Background(), events.TopicTransactionCompleted, txID, map[string]any{"grandTotal": 763})
	require.NoError(t, err)
	require.Equal(t, events.TopicTransactionCompleted, ev.Topic)
	require.Equal(t, txID, ev.AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(store.lastPayload, &payload))
	require.EqualValues(t, 763, payload["grandTotal"])

	require.Len(t, sched.events, 1)
	require.Len(t, notifier.events, 1)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := &events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), " ", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicShiftClosed, uuid.Nil, nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicShiftClosed, uuid.New(), []byte("not-json"))
	require.Error(t, err)
}

func TestEmitReportsNotifierFailureAfterPersist(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{err: errors.New("smtp down")}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	ev, err := bus.Emit(context.Background(), events.TopicShiftClosed, uuid.New(), nil)
	require.Error(t, err)
	require.NotEqual(t, uuid.Nil, ev.ID)
	require.Equal(t, events.TopicShiftClosed, store.lastTopic)
}
