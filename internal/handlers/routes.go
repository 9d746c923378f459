package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/prize-arena-payments/internal/aws"
	"github.com/imrishuroy/prize-arena-payments/internal/checkout"
	"github.com/imrishuroy/prize-arena-payments/internal/contests"
	"github.com/imrishuroy/prize-arena-payments/internal/idempotency"
	"github.com/imrishuroy/prize-arena-payments/internal/middleware"
	"github.com/imrishuroy/prize-arena-payments/internal/participations"
	"github.com/imrishuroy/prize-arena-payments/internal/payments"
	"github.com/imrishuroy/prize-arena-payments/internal/reconcile"
)

// Reconciler confirms checkout sessions.
type Reconciler interface {
	Reconcile(ctx context.Context, sessionID string, caller reconcile.Caller) (*reconcile.Result, error)
}

// PaymentReader reads payment records.
type PaymentReader interface {
	GetByTrackingID(ctx context.Context, trackingID string) (*payments.Payment, error)
	ListByPayer(ctx context.Context, email string, limit int32) ([]payments.Payment, error)
}

// ContestAdmin manages contest lifecycle.
type ContestAdmin interface {
	Get(ctx context.Context, contestID string) (*contests.Contest, error)
	UpdateStatus(ctx context.Context, contestID string, from, to contests.Status) error
}

// ParticipantLister lists contest entries.
type ParticipantLister interface {
	ListByContest(ctx context.Context, contestID string) ([]participations.Participation, error)
}

// EventVerifier authenticates processor webhook deliveries.
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) (*checkout.Event, error)
}

// DeliveryLog deduplicates webhook deliveries.
type DeliveryLog interface {
	Begin(ctx context.Context, eventID, eventType, sessionID string) (bool, error)
	Get(ctx context.Context, eventID string) (*idempotency.Delivery, error)
	MarkEnqueued(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID, note string) error
}

// SessionPublisher enqueues sessions for the worker.
type SessionPublisher interface {
	PublishSession(ctx context.Context, msg aws.SessionMessage) error
}

// Dependencies groups everything the routes need. The webhook route is only
// mounted when Events, Deliveries and Queue are all set.
type Dependencies struct {
	Reconciler     Reconciler
	Payments       PaymentReader
	Contests       ContestAdmin
	Participations ParticipantLister
	Tokens         middleware.TokenVerifier
	Validator      *validatorv10.Validate

	Events     EventVerifier
	Deliveries DeliveryLog
	Queue      SessionPublisher
}

// RegisterRoutes mounts the API on r.
func RegisterRoutes(r *gin.Engine, d Dependencies) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := r.Group("/", middleware.RequireAuth(d.Tokens))

	ph := &paymentsHandler{reconciler: d.Reconciler, payments: d.Payments, validator: d.Validator}
	authed.PATCH("/payment-success", ph.paymentSuccess)
	authed.GET("/payments", ph.list)
	authed.GET("/payments/:trackingId", ph.get)

	ch := &contestsHandler{contests: d.Contests, participations: d.Participations, validator: d.Validator}
	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.PATCH("/contests/:id/status", ch.updateStatus)
	admin.GET("/contests/:id/participants", ch.participants)

	if d.Events != nil && d.Deliveries != nil && d.Queue != nil {
		wh := &webhookHandler{events: d.Events, deliveries: d.Deliveries, queue: d.Queue}
		r.POST("/webhooks/stripe", wh.handle)
	}
}
