package enums

// OutboxAggregateType is the aggregate_type column of outbox_events. The
// aggregate id is also the Pub/Sub ordering key.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateCart  OutboxAggregateType = "cart"
)

var aggregateTypes = newValueSet("aggregate type", AggregateOrder, AggregateCart)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType is the event_type column and message attribute.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventCartMerged         OutboxEventType = "cart_merged"
)

var outboxEventTypes = newValueSet("outbox event type",
	EventOrderCreated, EventOrderStatusChanged, EventCartMerged,
)

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse(value)
}

// OutboxDLQErrorReason explains why the publisher stopped retrying an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
