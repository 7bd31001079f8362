package events

// Topic constants for domain events emitted by the register.
const (
	TopicTransactionCompleted = "transaction.completed"
	TopicTransactionVoided    = "transaction.voided"
	TopicTransactionRefunded  = "transaction.refunded"
	TopicShiftOpened          = "shift.opened"
	TopicShiftClosed          = "shift.closed"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicTransactionCompleted,
		TopicTransactionVoided,
		TopicTransactionRefunded,
		TopicShiftOpened,
		TopicShiftClosed,
	}
}
