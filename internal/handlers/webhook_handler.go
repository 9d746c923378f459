package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/prize-arena-payments/internal/aws"
	"github.com/imrishuroy/prize-arena-payments/internal/middleware"
)

// maxWebhookBody bounds the payload read before signature verification.
const maxWebhookBody = 64 << 10

type webhookHandler struct {
	events     EventVerifier
	deliveries DeliveryLog
	queue      SessionPublisher
}

// handle accepts POST /webhooks/stripe. Settling checkout events are put on
// the queue once per event id; everything else is acknowledged and dropped.
func (h *webhookHandler) handle(c *gin.Context) {
	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c)

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		fail(c, http.StatusBadRequest, "unreadable payload", nil)
		return
	}
	evt, err := h.events.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		lg.Warn().Err(err).Msg("webhook rejected")
		fail(c, http.StatusBadRequest, "invalid signature", nil)
		return
	}

	l := lg.With().Str("event_id", evt.ID).Str("event_type", evt.Type).Logger()
	if !evt.Settles() || evt.SessionID == "" {
		l.Debug().Msg("webhook ignored")
		c.JSON(http.StatusOK, gin.H{"success": true, "received": true, "ignored": true})
		return
	}

	created, err := h.deliveries.Begin(ctx, evt.ID, evt.Type, evt.SessionID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "", err)
		return
	}
	if !created {
		prev, err := h.deliveries.Get(ctx, evt.ID)
		if err != nil {
			fail(c, http.StatusInternalServerError, "", err)
			return
		}
		if prev != nil && prev.Settled() {
			l.Info().Msg("duplicate webhook delivery")
			c.JSON(http.StatusOK, gin.H{"success": true, "received": true, "duplicate": true})
			return
		}
		// RECEIVED or FAILED: the earlier attempt never reached the queue
	}

	msg := aws.SessionMessage{
		SessionID: evt.SessionID,
		EventID:   evt.ID,
		EventType: evt.Type,
		RequestID: middleware.RequestIDFrom(c),
	}
	if err := h.queue.PublishSession(ctx, msg); err != nil {
		if merr := h.deliveries.MarkFailed(ctx, evt.ID, fmt.Sprintf("sqs_send_failed: %v", err)); merr != nil {
			l.Warn().Err(merr).Msg("mark delivery failed")
		}
		// non-2xx makes the processor redeliver
		fail(c, http.StatusInternalServerError, "", err)
		return
	}
	if err := h.deliveries.MarkEnqueued(ctx, evt.ID); err != nil {
		// the message is queued; a redelivery would enqueue again and reconcile is idempotent
		l.Warn().Err(err).Msg("mark delivery enqueued")
	}

	l.Info().Str("session_id", evt.SessionID).Msg("webhook enqueued")
	c.JSON(http.StatusOK, gin.H{"success": true, "received": true})
}
