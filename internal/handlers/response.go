// Package handlers exposes the payment reconciliation API over gin.
//
// Every response carries a boolean "success". Failures add a "message" that is
// safe to show; 5xx messages are generic and the full error only reaches the
// request-scoped log.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/prize-arena-payments/internal/middleware"
	"github.com/imrishuroy/prize-arena-payments/internal/reconcile"
)

const internalMessage = "internal server error"

// fail aborts with the error envelope. Server errors are logged with err.
func fail(c *gin.Context, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Err(err).Int("status", status).Msg("api error")
		msg = internalMessage
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

// reconcileStatus maps reconciliation failure kinds onto HTTP statuses.
func reconcileStatus(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, reconcile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrPaymentIncomplete):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// failReconcile writes the response for a reconciliation error.
func failReconcile(c *gin.Context, err error) {
	var re *reconcile.Error
	msg := internalMessage
	if errors.As(err, &re) {
		msg = re.Message
	}

	status := reconcileStatus(err)
	if re != nil && errors.Is(err, reconcile.ErrPaymentIncomplete) {
		c.JSON(status, gin.H{
			"success":       false,
			"message":       msg,
			"paymentStatus": re.PaymentStatus,
		})
		return
	}
	if status < http.StatusInternalServerError {
		middleware.LoggerFrom(c).Warn().Err(err).Int("status", status).Msg("reconcile rejected")
	}
	fail(c, status, msg, err)
}
