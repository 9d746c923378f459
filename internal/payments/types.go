package payments

import "time"

// Status is the settlement state of a payment record.
type Status string

// StatusPaid is the only status a confirmed payment is recorded with.
const StatusPaid Status = "paid"

// Index names on the payments table.
const (
	TrackingIDIndex = "tracking_id-index"
	PayerEmailIndex = "payer_email-index"
)

// Payment is one confirmed charge, keyed by the processor's transaction id.
type Payment struct {
	TransactionID string    `dynamodbav:"transaction_id" json:"transactionId"` // PK (payment intent id)
	PaymentID     string    `dynamodbav:"payment_id" json:"paymentId"`
	TrackingID    string    `dynamodbav:"tracking_id" json:"trackingId"`
	SessionID     string    `dynamodbav:"session_id" json:"sessionId"`
	ContestID     string    `dynamodbav:"contest_id" json:"contestId"`
	ContestName   string    `dynamodbav:"contest_name,omitempty" json:"contestName,omitempty"`
	PayerUID      string    `dynamodbav:"payer_uid" json:"payerUid"`
	PayerEmail    string    `dynamodbav:"payer_email" json:"payerEmail"`
	Amount        float64   `dynamodbav:"amount" json:"amount"` // major units
	Currency      string    `dynamodbav:"currency" json:"currency"`
	Status        Status    `dynamodbav:"status" json:"status"`
	PaidAt        time.Time `dynamodbav:"paid_at" json:"paidAt"`
}

// NormalizeAmount converts minor units (cents) into major units.
func NormalizeAmount(minor int64) float64 {
	return float64(minor) / 100
}
