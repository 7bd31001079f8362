package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes every emitted event on a known topic to the audit log.
// Events on topics outside the allow list are ignored, so ad-hoc topics can
// be emitted without flooding the log.
type LogNotifier struct {
	Log    zerolog.Logger
	Topics []string
}

func (n LogNotifier) Notify(_ context.Context, event Event) error {
	topics := n.Topics
	if len(topics) == 0 {
		topics = DefaultTopics()
	}
	for _, topic := range topics {
		if topic == event.Topic {
			n.Log.Info().
				Str("topic", event.Topic).
				Str("event_id", event.ID.String()).
				Str("aggregate_id", event.AggregateID.String()).
				Msg("domain event")
			return nil
		}
	}
	return nil
}
