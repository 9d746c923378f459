package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/prize-arena-payments/internal/checkout"
	"github.com/imrishuroy/prize-arena-payments/internal/contests"
	"github.com/imrishuroy/prize-arena-payments/internal/reconcile"
	"github.com/imrishuroy/prize-arena-payments/internal/testutil"
)

// --- mock implementations ---

type mockReconciler struct {
	mu      sync.Mutex
	errs    map[string]error // by session id
	callers []reconcile.Caller
}

func (m *mockReconciler) Reconcile(ctx context.Context, sessionID string, caller reconcile.Caller) (*reconcile.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callers = append(m.callers, caller)
	if err := m.errs[sessionID]; err != nil {
		return nil, err
	}
	return &reconcile.Result{TrackingID: "PRCL-20261014-ABCDEF", TransactionID: "pi_" + sessionID}, nil
}

type staticSessions map[string]*checkout.Session

func (s staticSessions) Lookup(ctx context.Context, id string) (*checkout.Session, error) {
	if sess, ok := s[id]; ok {
		return sess, nil
	}
	return nil, checkout.ErrSessionNotFound
}

type failingSessions struct{ err error }

func (f failingSessions) Lookup(ctx context.Context, id string) (*checkout.Session, error) {
	return nil, f.err
}

func kindErr(kind error) error { return &reconcile.Error{Kind: kind, Message: kind.Error()} }

func sqsMessage(id, body string) events.SQSMessage {
	return events.SQSMessage{MessageId: id, Body: body}
}

func TestWorkerHandle_PartialBatchFailures(t *testing.T) {
	m := &mockReconciler{errs: map[string]error{
		"cs_incomplete": kindErr(reconcile.ErrPaymentIncomplete),
		"cs_gone":       kindErr(reconcile.ErrNotFound),
		"cs_bad":        kindErr(reconcile.ErrInvalidRequest),
		"cs_throttled":  kindErr(reconcile.ErrInternal),
		"cs_unknown":    errors.New("network"),
	}}
	p := NewProcessor(m)

	ev := events.SQSEvent{Records: []events.SQSMessage{
		sqsMessage("m1", `{"session_id":"cs_ok","event_id":"evt_1"}`),
		sqsMessage("m2", `{"session_id":"cs_incomplete","event_id":"evt_2"}`),
		sqsMessage("m3", `{"session_id":"cs_gone","event_id":"evt_3"}`),
		sqsMessage("m4", `{"session_id":"cs_bad","event_id":"evt_4"}`),
		sqsMessage("m5", `{"session_id":"cs_throttled","event_id":"evt_5"}`),
		sqsMessage("m6", `{"session_id":"cs_unknown","event_id":"evt_6"}`),
		sqsMessage("m7", `not json`),
		sqsMessage("m8", `{"event_id":"evt_8"}`),
	}}

	resp, err := p.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	got := map[string]bool{}
	for _, f := range resp.BatchItemFailures {
		got[f.ItemIdentifier] = true
	}
	if len(got) != 2 || !got["m5"] || !got["m6"] {
		t.Fatalf("expected only m5 and m6 to be retried, got %v", got)
	}
	if len(m.callers) != 6 {
		t.Fatalf("expected 6 reconcile calls, got %d", len(m.callers))
	}
	for _, c := range m.callers {
		if !c.Trusted {
			t.Fatalf("worker must reconcile as a trusted caller")
		}
	}
}

func TestWorkerProcess_EndToEndIsIdempotent(t *testing.T) {
	fake := testutil.NewFakeDynamo()
	fake.CreateTable("contests", "contest_id", "")
	fake.CreateTable("payments", "transaction_id", "")
	fake.CreateTable("participations", "contest_id", "payer_uid")
	cs := contests.NewStore(fake, "contests")
	if err := fake.SeedValue("contests", contests.Contest{ContestID: "c1", Name: "Logo", Status: contests.StatusConfirmed}); err != nil {
		t.Fatalf("seed contest: %v", err)
	}

	svc := reconcile.NewService(reconcile.Config{
		DynamoDB:            fake,
		ContestsTable:       "contests",
		PaymentsTable:       "payments",
		ParticipationsTable: "participations",
		Sessions: staticSessions{"cs_1": {
			ID:              "cs_1",
			PaymentStatus:   checkout.PaymentStatusPaid,
			PaymentIntentID: "pi_1",
			AmountMinor:     2500,
			Currency:        "usd",
			Metadata: map[string]string{
				checkout.MetaContestID: "c1",
				checkout.MetaUserUID:   "uid-1",
				checkout.MetaUserEmail: "someone@example.com",
			},
		}},
	})
	p := NewProcessor(svc)

	// completed and async_payment_succeeded for the same session, plus a redelivery
	ev := events.SQSEvent{Records: []events.SQSMessage{
		sqsMessage("m1", `{"session_id":"cs_1","event_id":"evt_1"}`),
		sqsMessage("m2", `{"session_id":"cs_1","event_id":"evt_2"}`),
		sqsMessage("m3", `{"session_id":"cs_1","event_id":"evt_1"}`),
	}}
	resp, err := p.Handle(context.Background(), ev)
	if err != nil || len(resp.BatchItemFailures) != 0 {
		t.Fatalf("unexpected failures: %+v, %v", resp.BatchItemFailures, err)
	}

	if n := fake.Count("payments"); n != 1 {
		t.Fatalf("expected 1 payment, got %d", n)
	}
	c, _ := cs.Get(context.Background(), "c1")
	if c.ParticipantCount != 1 {
		t.Fatalf("expected participant_count 1, got %d", c.ParticipantCount)
	}
}

func TestWorkerHandle_RetriesTransientLookupFailure(t *testing.T) {
	fake := testutil.NewFakeDynamo()
	fake.CreateTable("contests", "contest_id", "")
	fake.CreateTable("payments", "transaction_id", "")
	fake.CreateTable("participations", "contest_id", "payer_uid")

	svc := reconcile.NewService(reconcile.Config{
		DynamoDB:            fake,
		ContestsTable:       "contests",
		PaymentsTable:       "payments",
		ParticipationsTable: "participations",
		Sessions:            failingSessions{err: fmt.Errorf("%w: dial tcp: i/o timeout", checkout.ErrLookupFailed)},
	})
	p := NewProcessor(svc)

	resp, err := p.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		sqsMessage("m1", `{"session_id":"cs_1","event_id":"evt_1"}`),
	}})
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m1" {
		t.Fatalf("expected m1 to be redelivered, got %+v", resp.BatchItemFailures)
	}

	// an unknown session stays permanent
	svc = reconcile.NewService(reconcile.Config{
		DynamoDB:            fake,
		ContestsTable:       "contests",
		PaymentsTable:       "payments",
		ParticipationsTable: "participations",
		Sessions:            staticSessions{},
	})
	resp, err = NewProcessor(svc).Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		sqsMessage("m2", `{"session_id":"cs_missing","event_id":"evt_2"}`),
	}})
	if err != nil || len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected unknown session to be acknowledged, got %+v, %v", resp.BatchItemFailures, err)
	}
}
