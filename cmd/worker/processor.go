package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"github.com/imrishuroy/prize-arena-payments/internal/aws"
	"github.com/imrishuroy/prize-arena-payments/internal/checkout"
	"github.com/imrishuroy/prize-arena-payments/internal/reconcile"
)

// Reconciler confirms checkout sessions.
type Reconciler interface {
	Reconcile(ctx context.Context, sessionID string, caller reconcile.Caller) (*reconcile.Result, error)
}

// Processor reconciles checkout sessions queued by the webhook route.
type Processor struct {
	reconciler Reconciler
}

// NewProcessor creates a worker processor.
func NewProcessor(r Reconciler) *Processor {
	return &Processor{reconciler: r}
}

// Handle processes an SQS batch. Messages that failed for a transient reason
// are reported as batch item failures so only they are redelivered; the rest
// of the batch is acknowledged. The event source mapping must enable
// ReportBatchItemFailures.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

// processMessage returns an error only when the message should be retried.
func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	lg := log.With().Str("message_id", rec.MessageId).Logger()

	var msg aws.SessionMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		// redelivery cannot fix a malformed body
		lg.Error().Err(err).Str("body", rec.Body).Msg("invalid message body, dropping")
		return nil
	}
	msg.SessionID = strings.TrimSpace(msg.SessionID)
	if msg.SessionID == "" {
		lg.Error().Str("event_id", msg.EventID).Msg("message without session id, dropping")
		return nil
	}

	lg = lg.With().
		Str("session_id", msg.SessionID).
		Str("event_id", msg.EventID).
		Str("correlation_id", msg.RequestID).
		Logger()
	ctx = lg.WithContext(ctx)

	res, err := p.reconciler.Reconcile(ctx, msg.SessionID, reconcile.Caller{Trusted: true})
	switch {
	case err == nil:
		lg.Info().
			Str("tracking_id", res.TrackingID).
			Bool("already_processed", res.AlreadyProcessed).
			Msg("session reconciled")
		return nil
	case permanent(err):
		lg.Warn().Err(err).Msg("session not reconciled, dropping")
		return nil
	default:
		lg.Error().Err(err).Msg("reconcile failed, will retry")
		return err
	}
}

// permanent reports failures that a redelivery of the same message cannot fix.
// An incomplete async payment is settled by its own later event. A lookup
// that failed in transport is reported as an invalid request but may succeed
// on the next delivery.
func permanent(err error) bool {
	if errors.Is(err, checkout.ErrLookupFailed) {
		return false
	}
	return errors.Is(err, reconcile.ErrInvalidRequest) ||
		errors.Is(err, reconcile.ErrPaymentIncomplete) ||
		errors.Is(err, reconcile.ErrNotFound) ||
		errors.Is(err, reconcile.ErrUnauthorized)
}
