package participations

import "time"

// Participation is a user's entry into a contest. One per (contest, user).
type Participation struct {
	ContestID       string    `dynamodbav:"contest_id" json:"contestId"` // PK
	PayerUID        string    `dynamodbav:"payer_uid" json:"payerUid"`   // SK
	ParticipationID string    `dynamodbav:"participation_id" json:"participationId"`
	PayerEmail      string    `dynamodbav:"payer_email" json:"payerEmail"`
	PaymentStatus   string    `dynamodbav:"payment_status" json:"paymentStatus"`
	RegisteredAt    time.Time `dynamodbav:"registered_at" json:"registeredAt"`
	// Submitted is flipped by the submission workflow, never by payment handling.
	Submitted bool `dynamodbav:"submitted" json:"submitted"`
}
