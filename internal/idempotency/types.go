package idempotency

import "time"

// Status is the queueing state of a webhook delivery.
type Status string

// Delivery statuses
const (
	StatusReceived Status = "RECEIVED"
	StatusEnqueued Status = "ENQUEUED"
	StatusFailed   Status = "FAILED"
)

// Delivery is the shape persisted in the webhook deliveries table, one per
// processor event id.
type Delivery struct {
	EventID   string    `dynamodbav:"event_id"` // PK
	SessionID string    `dynamodbav:"session_id"`
	EventType string    `dynamodbav:"event_type,omitempty"`
	Status    Status    `dynamodbav:"status"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
	ExpiresAt int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note      string    `dynamodbav:"note,omitempty"`
}

// Settled reports whether the delivery already made it onto the queue.
func (d *Delivery) Settled() bool { return d.Status == StatusEnqueued }
