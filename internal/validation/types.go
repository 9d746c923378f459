package validation

// PaymentSuccessQuery is the query string for PATCH /payment-success
type PaymentSuccessQuery struct {
	SessionID string `form:"session_id" validate:"required,checkout_session,max=255"` // hosted checkout session id
}

// ListPaymentsQuery is the query string for GET /payments
type ListPaymentsQuery struct {
	Limit int32 `form:"limit" validate:"omitempty,min=1,max=100"` // defaults to 25 when zero
}

// ContestStatusRequest is the payload for PATCH /admin/contests/:id/status
type ContestStatusRequest struct {
	From string `json:"from" validate:"required,oneof=Pending Confirmed Rejected Closed"` // status the caller expects
	To   string `json:"to" validate:"required,oneof=Pending Confirmed Rejected Closed"`   // status to move to
}
