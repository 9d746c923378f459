package reconcile

import (
	"context"

	"github.com/imrishuroy/prize-arena-payments/internal/participations"
	"github.com/imrishuroy/prize-arena-payments/internal/payments"
)

// Caller is the identity asking for reconciliation.
type Caller struct {
	UID   string
	Email string
	// Trusted is set for processor-originated work (webhook worker) where
	// there is no end user to match against the session payer.
	Trusted bool
}

// Result is the definitive outcome of a successful reconciliation.
type Result struct {
	TrackingID       string
	TransactionID    string
	AlreadyProcessed bool
	Payment          *payments.Payment
	// Participation is nil when the entry already existed or the payment was
	// processed earlier.
	Participation *participations.Participation
}

// Outcome labels reported to the Recorder.
const (
	OutcomeProcessed        = "processed"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeIncomplete       = "incomplete"
	OutcomeRejected         = "rejected"
	OutcomeFailed           = "failed"
)

// Recorder counts reconciliation outcomes.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome string) error
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(context.Context, string) error { return nil }
