package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/prize-arena-payments/internal/testutil"
)

const tbl = "payments"

func newTestStore(t *testing.T) (*Store, *testutil.FakeDynamo) {
	t.Helper()
	fake := testutil.NewFakeDynamo()
	fake.CreateTable(tbl, "transaction_id", "")
	return NewStore(fake, tbl), fake
}

func samplePayment(txID, tracking, email string) Payment {
	return Payment{
		TransactionID: txID,
		PaymentID:     "pay-" + txID,
		TrackingID:    tracking,
		SessionID:     "cs_" + txID,
		ContestID:     "c1",
		PayerUID:      "uid-1",
		PayerEmail:    email,
		Amount:        15,
		Currency:      "USD",
		Status:        StatusPaid,
		PaidAt:        time.Now().UTC().Round(time.Second),
	}
}

func commit(store *Store, fake *testutil.FakeDynamo, p Payment) error {
	put, err := store.PutItem(p)
	if err != nil {
		return err
	}
	_, err = fake.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{put},
	})
	return err
}

func TestPutItem_Get_Duplicate(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	p := samplePayment("pi_1", "PRCL-20260101-ABCDEF", "a@example.com")
	if err := commit(store, fake, p); err != nil {
		t.Fatalf("commit error: %v", err)
	}

	dup := p
	dup.TrackingID = "PRCL-20260101-FFFFFF"
	var tce *types.TransactionCanceledException
	if err := commit(store, fake, dup); !errors.As(err, &tce) {
		t.Fatalf("expected cancellation for duplicate transaction, got %v", err)
	}
	if fake.Count(tbl) != 1 {
		t.Fatalf("expected 1 payment, got %d", fake.Count(tbl))
	}

	got, err := store.Get(ctx, "pi_1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got == nil || got.TrackingID != p.TrackingID || got.Amount != 15 {
		t.Fatalf("unexpected payment: %+v", got)
	}

	missing, err := store.Get(ctx, "pi_missing")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", missing, err)
	}
}

func TestGetByTrackingID_ListByPayer(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	_ = commit(store, fake, samplePayment("pi_1", "PRCL-20260101-AAAAAA", "a@example.com"))
	_ = commit(store, fake, samplePayment("pi_2", "PRCL-20260101-BBBBBB", "a@example.com"))
	_ = commit(store, fake, samplePayment("pi_3", "PRCL-20260101-CCCCCC", "b@example.com"))

	got, err := store.GetByTrackingID(ctx, "PRCL-20260101-BBBBBB")
	if err != nil {
		t.Fatalf("GetByTrackingID error: %v", err)
	}
	if got == nil || got.TransactionID != "pi_2" {
		t.Fatalf("unexpected payment: %+v", got)
	}

	none, err := store.GetByTrackingID(ctx, "PRCL-20260101-000000")
	if err != nil || none != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", none, err)
	}

	list, err := store.ListByPayer(ctx, "a@example.com", 10)
	if err != nil {
		t.Fatalf("ListByPayer error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(list))
	}
}

func TestNormalizeAmount(t *testing.T) {
	cases := map[int64]float64{1500: 15.00, 1999: 19.99, 0: 0, 5: 0.05}
	for minor, want := range cases {
		if got := NormalizeAmount(minor); got != want {
			t.Errorf("NormalizeAmount(%d) = %v, want %v", minor, got, want)
		}
	}
}

func TestNewTrackingID_Format(t *testing.T) {
	now := time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewTrackingID(now)
		if !TrackingIDPattern.MatchString(id) {
			t.Fatalf("tracking id %q does not match pattern", id)
		}
		if id[5:13] != "20261014" {
			t.Fatalf("tracking id %q has wrong date", id)
		}
		seen[id] = true
	}
	if len(seen) < 45 {
		t.Fatalf("tracking ids repeat too often: %d unique of 50", len(seen))
	}
}
