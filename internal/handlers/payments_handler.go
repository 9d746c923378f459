package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/prize-arena-payments/internal/auth"
	"github.com/imrishuroy/prize-arena-payments/internal/middleware"
	"github.com/imrishuroy/prize-arena-payments/internal/payments"
	"github.com/imrishuroy/prize-arena-payments/internal/reconcile"
	"github.com/imrishuroy/prize-arena-payments/internal/validation"
)

const defaultListLimit = 25

type paymentsHandler struct {
	reconciler Reconciler
	payments   PaymentReader
	validator  *validatorv10.Validate
}

// paymentSuccess handles PATCH /payment-success?session_id=...
func (h *paymentsHandler) paymentSuccess(c *gin.Context) {
	var q validation.PaymentSuccessQuery
	if err := validation.BindQueryAndValidate(c, &q, h.validator); err != nil {
		return
	}

	id := middleware.IdentityFrom(c)
	caller := reconcile.Caller{UID: id.UID, Email: id.Email}

	lg := middleware.LoggerFrom(c).With().Str("session_id", q.SessionID).Logger()
	ctx := lg.WithContext(c.Request.Context())

	res, err := h.reconciler.Reconcile(ctx, q.SessionID, caller)
	if err != nil {
		failReconcile(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"trackingId":        res.TrackingID,
		"transactionId":     res.TransactionID,
		"alreadyProcessed":  res.AlreadyProcessed,
		"paymentInfo":       res.Payment,
		"participationInfo": res.Participation,
	})
}

// get handles GET /payments/:trackingId. Only the payer or an admin may read.
func (h *paymentsHandler) get(c *gin.Context) {
	trackingID := strings.ToUpper(strings.TrimSpace(c.Param("trackingId")))
	if !payments.TrackingIDPattern.MatchString(trackingID) {
		fail(c, http.StatusBadRequest, "invalid tracking id", nil)
		return
	}

	p, err := h.payments.GetByTrackingID(c.Request.Context(), trackingID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "", err)
		return
	}
	id := middleware.IdentityFrom(c)
	if p == nil || !canRead(id, p) {
		// same answer for missing and foreign payments
		fail(c, http.StatusNotFound, "payment not found", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": p})
}

// list handles GET /payments for the caller's own payments.
func (h *paymentsHandler) list(c *gin.Context) {
	var q validation.ListPaymentsQuery
	if err := validation.BindQueryAndValidate(c, &q, h.validator); err != nil {
		return
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	id := middleware.IdentityFrom(c)
	if id.Email == "" {
		fail(c, http.StatusBadRequest, "token carries no email", nil)
		return
	}
	items, err := h.payments.ListByPayer(c.Request.Context(), id.Email, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "", err)
		return
	}
	if items == nil {
		items = []payments.Payment{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payments": items})
}

func canRead(id *auth.Identity, p *payments.Payment) bool {
	if id == nil {
		return false
	}
	if id.Role == auth.RoleAdmin {
		return true
	}
	return (id.UID != "" && id.UID == p.PayerUID) || (id.Email != "" && strings.EqualFold(id.Email, p.PayerEmail))
}
