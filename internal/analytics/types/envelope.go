package types

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Envelope is the routing metadata of a consumed order event. The decoded
// payload travels next to it.
type Envelope struct {
	EventID       string                    `json:"eventId"`
	EventType     enums.OutboxEventType     `json:"eventType"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType"`
	AggregateID   string                    `json:"aggregateId"`
	OccurredAt    time.Time                 `json:"occurredAt"`
	MessageID     string                    `json:"messageId,omitempty"`
}
