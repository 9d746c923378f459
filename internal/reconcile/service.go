// Package reconcile confirms paid checkout sessions against contest, payment
// and participation records.
//
// A session is processed at most once per transaction id (the processor's
// payment intent id). The counter increment, the payment insert and the
// participation insert are committed in one DynamoDB transaction whose payment
// step is conditioned on the transaction id being new, so retries, duplicate
// webhook deliveries and concurrent confirmations can neither double count a
// participant nor leave a counter incremented without a payment.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/prize-arena-payments/internal/aws"
	"github.com/imrishuroy/prize-arena-payments/internal/checkout"
	"github.com/imrishuroy/prize-arena-payments/internal/contests"
	"github.com/imrishuroy/prize-arena-payments/internal/participations"
	"github.com/imrishuroy/prize-arena-payments/internal/payments"
)

// Positions of the steps inside the commit transaction.
const (
	stepContest = iota
	stepPayment
	stepParticipation
)

// Config groups dependencies for the Service.
type Config struct {
	DynamoDB            aws.DynamoDBAPI
	ContestsTable       string
	PaymentsTable       string
	ParticipationsTable string
	Sessions            checkout.Lookup
	Recorder            Recorder
}

// Service performs reconciliation.
type Service struct {
	dynamo         aws.DynamoDBAPI
	contests       *contests.Store
	payments       *payments.Store
	participations *participations.Store
	sessions       checkout.Lookup
	recorder       Recorder
	nowFunc        func() time.Time
	newID          func() string
}

// NewService wires a Service from cfg. A nil Recorder disables metrics.
func NewService(cfg Config) *Service {
	rec := cfg.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{
		dynamo:         cfg.DynamoDB,
		contests:       contests.NewStore(cfg.DynamoDB, cfg.ContestsTable),
		payments:       payments.NewStore(cfg.DynamoDB, cfg.PaymentsTable),
		participations: participations.NewStore(cfg.DynamoDB, cfg.ParticipationsTable),
		sessions:       cfg.Sessions,
		recorder:       rec,
		nowFunc:        time.Now,
		newID:          uuid.NewString,
	}
}

// Reconcile confirms the checkout session sessionID on behalf of caller.
//
// Failures are *Error values whose Kind is one of the Err* sentinels.
// A duplicate confirmation is not a failure: it returns a Result with
// AlreadyProcessed set and the tracking id issued the first time.
func (s *Service) Reconcile(ctx context.Context, sessionID string, caller Caller) (*Result, error) {
	res, err := s.reconcile(ctx, strings.TrimSpace(sessionID), caller)

	outcome := outcomeOf(res, err)
	if rerr := s.recorder.RecordOutcome(ctx, outcome); rerr != nil {
		zerolog.Ctx(ctx).Warn().Err(rerr).Str("outcome", outcome).Msg("record reconcile outcome")
	}
	return res, err
}

func (s *Service) reconcile(ctx context.Context, sessionID string, caller Caller) (*Result, error) {
	// callers attach session_id to the context logger
	lg := *zerolog.Ctx(ctx)

	if sessionID == "" {
		return nil, fail(ErrInvalidRequest, "session_id is required", nil)
	}

	sess, err := s.sessions.Lookup(ctx, sessionID)
	if err != nil {
		lg.Warn().Err(err).Msg("checkout session lookup failed")
		return nil, fail(ErrInvalidRequest, "checkout session could not be resolved", err)
	}

	if !caller.Trusted && !payerMatches(sess, caller) {
		lg.Warn().Str("caller_email", caller.Email).Msg("caller is not the session payer")
		return nil, fail(ErrUnauthorized, "session does not belong to the caller", nil)
	}

	if !sess.Paid() {
		e := fail(ErrPaymentIncomplete, "payment has not been completed", nil)
		e.PaymentStatus = string(sess.PaymentStatus)
		return nil, e
	}

	txID := sess.PaymentIntentID
	if txID == "" {
		return nil, fail(ErrInvalidRequest, "paid session has no payment intent", nil)
	}
	lg = lg.With().Str("transaction_id", txID).Logger()

	existing, err := s.payments.Get(ctx, txID)
	if err != nil {
		return nil, fail(ErrInternal, "payment lookup failed", err)
	}
	if existing != nil {
		lg.Info().Str("tracking_id", existing.TrackingID).Msg("payment already processed")
		return alreadyProcessed(existing), nil
	}

	contestID := sess.ContestID()
	if contestID == "" {
		return nil, fail(ErrInvalidRequest, "session metadata is missing contestId", nil)
	}
	uid := sess.PayerUID()
	if uid == "" {
		return nil, fail(ErrInvalidRequest, "session metadata is missing userUID", nil)
	}

	now := s.nowFunc().UTC()
	payment := payments.Payment{
		TransactionID: txID,
		PaymentID:     s.newID(),
		TrackingID:    payments.NewTrackingID(now),
		SessionID:     sess.ID,
		ContestID:     contestID,
		ContestName:   sess.Title(),
		PayerUID:      uid,
		PayerEmail:    sess.PayerEmail(),
		Amount:        payments.NormalizeAmount(sess.AmountMinor),
		Currency:      strings.ToUpper(sess.Currency),
		Status:        payments.StatusPaid,
		PaidAt:        now,
	}

	prior, err := s.participations.Get(ctx, contestID, uid)
	if err != nil {
		return nil, fail(ErrInternal, "participation lookup failed", err)
	}
	var entry *participations.Participation
	if prior == nil {
		entry = &participations.Participation{
			ContestID:       contestID,
			PayerUID:        uid,
			ParticipationID: s.newID(),
			PayerEmail:      payment.PayerEmail,
			PaymentStatus:   string(payments.StatusPaid),
			RegisteredAt:    now,
			Submitted:       false,
		}
	}

	for {
		err := s.commit(ctx, payment, entry)
		if err == nil {
			break
		}

		var tce *types.TransactionCanceledException
		if !errors.As(err, &tce) {
			return nil, fail(ErrInternal, "commit failed", err)
		}
		reasons := tce.CancellationReasons

		switch {
		case conditionFailed(reasons, stepPayment):
			// Another confirmation of the same transaction committed first.
			winner, gerr := s.payments.Get(ctx, txID)
			if gerr != nil || winner == nil {
				return nil, fail(ErrInternal, "conflicting payment could not be read", errors.Join(ErrConflict, gerr))
			}
			lg.Info().Str("tracking_id", winner.TrackingID).Msg("lost race to concurrent confirmation")
			return alreadyProcessed(winner), nil

		case conditionFailed(reasons, stepContest):
			lg.Warn().Str("contest_id", contestID).Msg("contest not found")
			return nil, fail(ErrNotFound, "contest not found", nil)

		case entry != nil && conditionFailed(reasons, stepParticipation):
			// The entry appeared since we looked; keep it and commit without ours.
			lg.Debug().Msg("participation created concurrently")
			entry = nil

		default:
			return nil, fail(ErrInternal, "commit canceled", err)
		}
	}

	lg.Info().
		Str("tracking_id", payment.TrackingID).
		Str("contest_id", contestID).
		Bool("participation_created", entry != nil).
		Msg("payment reconciled")

	return &Result{
		TrackingID:       payment.TrackingID,
		TransactionID:    txID,
		AlreadyProcessed: false,
		Payment:          &payment,
		Participation:    entry,
	}, nil
}

// commit writes the counter increment, the payment and (when non-nil) the
// participation in one transaction.
func (s *Service) commit(ctx context.Context, p payments.Payment, entry *participations.Participation) error {
	putPayment, err := s.payments.PutItem(p)
	if err != nil {
		return err
	}
	items := []types.TransactWriteItem{
		s.contests.IncrementParticipantsItem(p.ContestID),
		putPayment,
	}
	if entry != nil {
		putEntry, err := s.participations.PutItem(*entry)
		if err != nil {
			return err
		}
		items = append(items, putEntry)
	}

	_, err = s.dynamo.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	return err
}

func payerMatches(sess *checkout.Session, caller Caller) bool {
	if email := sess.PayerEmail(); email != "" && caller.Email != "" && strings.EqualFold(email, caller.Email) {
		return true
	}
	uid := sess.PayerUID()
	return uid != "" && caller.UID != "" && uid == caller.UID
}

func alreadyProcessed(p *payments.Payment) *Result {
	return &Result{
		TrackingID:       p.TrackingID,
		TransactionID:    p.TransactionID,
		AlreadyProcessed: true,
		Payment:          p,
	}
}

func conditionFailed(reasons []types.CancellationReason, step int) bool {
	return step < len(reasons) && reasons[step].Code != nil && *reasons[step].Code == "ConditionalCheckFailed"
}

func outcomeOf(res *Result, err error) string {
	switch {
	case err == nil && res.AlreadyProcessed:
		return OutcomeAlreadyProcessed
	case err == nil:
		return OutcomeProcessed
	case errors.Is(err, ErrPaymentIncomplete):
		return OutcomeIncomplete
	case errors.Is(err, ErrInternal):
		return OutcomeFailed
	default:
		return OutcomeRejected
	}
}
