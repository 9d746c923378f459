package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/prize-arena-payments/internal/contests"
	"github.com/imrishuroy/prize-arena-payments/internal/middleware"
	"github.com/imrishuroy/prize-arena-payments/internal/participations"
	"github.com/imrishuroy/prize-arena-payments/internal/validation"
)

type contestsHandler struct {
	contests       ContestAdmin
	participations ParticipantLister
	validator      *validatorv10.Validate
}

// updateStatus handles PATCH /admin/contests/:id/status
func (h *contestsHandler) updateStatus(c *gin.Context) {
	contestID := strings.TrimSpace(c.Param("id"))

	var req validation.ContestStatusRequest
	if err := validation.BindAndValidate(c, &req, h.validator); err != nil {
		return
	}
	from, to := contests.Status(req.From), contests.Status(req.To)

	ctx := c.Request.Context()
	err := h.contests.UpdateStatus(ctx, contestID, from, to)
	switch {
	case err == nil:
	case errors.Is(err, contests.ErrInvalidTransition):
		fail(c, http.StatusBadRequest, "transition not allowed", nil)
		return
	case errors.Is(err, contests.ErrStatusMismatch):
		// either missing or moved by someone else
		current, gerr := h.contests.Get(ctx, contestID)
		if gerr != nil {
			fail(c, http.StatusInternalServerError, "", gerr)
			return
		}
		if current == nil {
			fail(c, http.StatusNotFound, "contest not found", nil)
			return
		}
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"success": false,
			"message": "contest status changed",
			"status":  current.Status,
		})
		return
	default:
		fail(c, http.StatusInternalServerError, "", err)
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("contest_id", contestID).
		Str("from", req.From).
		Str("to", req.To).
		Msg("contest status changed")
	c.JSON(http.StatusOK, gin.H{"success": true, "contestId": contestID, "status": to})
}

// participants handles GET /admin/contests/:id/participants
func (h *contestsHandler) participants(c *gin.Context) {
	contestID := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()

	contest, err := h.contests.Get(ctx, contestID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "", err)
		return
	}
	if contest == nil {
		fail(c, http.StatusNotFound, "contest not found", nil)
		return
	}
	entries, err := h.participations.ListByContest(ctx, contestID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "", err)
		return
	}
	if entries == nil {
		entries = []participations.Participation{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"contestId":        contestID,
		"participantCount": contest.ParticipantCount,
		"participants":     entries,
	})
}
