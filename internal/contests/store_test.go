package contests

import (
	"context"
	"errors"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/prize-arena-payments/internal/testutil"
)

const tbl = "contests"

func newTestStore(t *testing.T) (*Store, *testutil.FakeDynamo) {
	t.Helper()
	fake := testutil.NewFakeDynamo()
	fake.CreateTable(tbl, "contest_id", "")
	return NewStore(fake, tbl), fake
}

func seed(t *testing.T, fake *testutil.FakeDynamo, c Contest) {
	t.Helper()
	if c.Status == "" {
		c.Status = StatusPending
	}
	if err := fake.SeedValue(tbl, c); err != nil {
		t.Fatalf("seed contest: %v", err)
	}
}

func TestGet(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	seed(t, fake, Contest{ContestID: "c1", Name: "Logo Design", EntryFee: 15, Currency: "USD"})

	got, err := store.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got == nil || got.Name != "Logo Design" || got.Status != StatusPending {
		t.Fatalf("unexpected contest: %+v", got)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing contest, got (%v, %v)", missing, err)
	}
}

func TestUpdateStatus_Condition_SuccessAndFail(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	seed(t, fake, Contest{ContestID: "c2"})

	// success: Pending -> Confirmed
	if err := store.UpdateStatus(ctx, "c2", StatusPending, StatusConfirmed); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// failure: stored status is Confirmed now
	err := store.UpdateStatus(ctx, "c2", StatusPending, StatusRejected)
	if !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}

	// not part of the lifecycle at all
	err = store.UpdateStatus(ctx, "c2", StatusClosed, StatusPending)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	got, _ := store.Get(ctx, "c2")
	if got.Status != StatusConfirmed {
		t.Fatalf("expected Confirmed, got %s", got.Status)
	}
}

func TestIncrementParticipantsItem(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	seed(t, fake, Contest{ContestID: "c3"})

	for i := 0; i < 2; i++ {
		_, err := fake.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
			TransactItems: []types.TransactWriteItem{store.IncrementParticipantsItem("c3")},
		})
		if err != nil {
			t.Fatalf("transact error: %v", err)
		}
	}
	got, _ := store.Get(ctx, "c3")
	if got.ParticipantCount != 2 {
		t.Fatalf("expected participant_count 2, got %d", got.ParticipantCount)
	}

	_, err := fake.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{store.IncrementParticipantsItem("missing")},
	})
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		t.Fatalf("expected TransactionCanceledException for missing contest, got %v", err)
	}
	if fake.Count(tbl) != 1 {
		t.Fatalf("missing contest must not be created, have %d items", fake.Count(tbl))
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusRejected, true},
		{StatusConfirmed, StatusClosed, true},
		{StatusConfirmed, StatusPending, false},
		{StatusRejected, StatusConfirmed, false},
		{StatusClosed, StatusConfirmed, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if _, err := ParseStatus("approved"); err == nil {
		t.Errorf("expected error for unknown status")
	}
}
