// Package checkout resolves hosted checkout sessions and verifies the
// processor's webhook deliveries.
package checkout

import (
	"context"
	"errors"
	"strings"
)

// PaymentStatus as reported by the processor for a session.
type PaymentStatus string

// Session payment statuses
const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// Metadata keys written on the session when checkout is created.
const (
	MetaContestID   = "contestId"
	MetaTitle       = "title"
	MetaPaymentName = "paymentName"
	MetaUserUID     = "userUID"
	MetaUserEmail   = "userEmail"
)

var (
	// ErrSessionNotFound means the id is unknown or the session expired.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrLookupFailed wraps transport or processor failures.
	ErrLookupFailed = errors.New("checkout session lookup failed")
)

// Session is the read-only view of a checkout session.
type Session struct {
	ID              string
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	AmountMinor     int64
	Currency        string
	CustomerEmail   string
	Metadata        map[string]string
}

// Lookup resolves a session id.
type Lookup interface {
	Lookup(ctx context.Context, sessionID string) (*Session, error)
}

// Paid reports whether the processor settled the session.
func (s *Session) Paid() bool { return s.PaymentStatus == PaymentStatusPaid }

// ContestID is the contest the session pays for.
func (s *Session) ContestID() string { return strings.TrimSpace(s.Metadata[MetaContestID]) }

// PayerUID is the platform user id declared at checkout.
func (s *Session) PayerUID() string { return strings.TrimSpace(s.Metadata[MetaUserUID]) }

// PayerEmail is the declared payer, falling back to the processor's customer email.
func (s *Session) PayerEmail() string {
	if v := strings.TrimSpace(s.Metadata[MetaUserEmail]); v != "" {
		return v
	}
	return strings.TrimSpace(s.CustomerEmail)
}

// Title is the contest name shown at checkout. Older sessions carry paymentName.
func (s *Session) Title() string {
	if v := s.Metadata[MetaTitle]; v != "" {
		return v
	}
	return s.Metadata[MetaPaymentName]
}
