package handler

import (
	"errors"
	"net/http"

	"github.com/EpicMandM/station-booking/internal/booking"
	"github.com/EpicMandM/station-booking/internal/logger"
	"github.com/EpicMandM/station-booking/internal/store"
	"github.com/gin-gonic/gin"
)

type errorDetail struct {
	Type           string  `json:"type"`
	Field          string  `json:"field,omitempty"`
	Message        string  `json:"message"`
	ConflictingIDs []int64 `json:"conflicting_ids,omitempty"`
}

// StatusFor maps engine errors to HTTP status codes. For a batch the most
// specific client problem wins: not found, then authorization, then
// validation, then conflicts.
func StatusFor(err error) int {
	var (
		notFound    *booking.NotFoundError
		authz       *booking.AuthorizationError
		validation  *booking.ValidationError
		conflict    *booking.ConflictError
		unavailable *booking.UnavailableResourceError
		illegal     *booking.IllegalStateTransitionError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &authz):
		return http.StatusForbidden
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &conflict), errors.As(err, &unavailable), errors.As(err, &illegal),
		errors.Is(err, store.ErrVersionConflict), errors.Is(err, store.ErrSlotTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *APIHandler) respondError(ctx *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			logger.Action(ctx.Request.Method+" "+ctx.FullPath()),
			logger.F("REQUEST_ID", ctx.GetString("request_id")),
			logger.Error(err))
		ctx.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	ctx.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "errors": details(err)})
}

func details(err error) []errorDetail {
	var members []error
	var batch booking.Errors
	if errors.As(err, &batch) {
		members = batch
	} else {
		members = []error{err}
	}

	out := make([]errorDetail, 0, len(members))
	for _, m := range members {
		d := errorDetail{Message: m.Error()}
		var (
			validation  *booking.ValidationError
			conflict    *booking.ConflictError
			unavailable *booking.UnavailableResourceError
			notFound    *booking.NotFoundError
			authz       *booking.AuthorizationError
			illegal     *booking.IllegalStateTransitionError
		)
		switch {
		case errors.As(m, &validation):
			d.Type = "validation"
			d.Field = validation.Field
		case errors.As(m, &conflict):
			d.Type = "conflict"
			d.ConflictingIDs = conflict.ConflictingIDs
		case errors.As(m, &unavailable):
			d.Type = "unavailable"
		case errors.As(m, &notFound):
			d.Type = "not_found"
		case errors.As(m, &authz):
			d.Type = "authorization"
		case errors.As(m, &illegal):
			d.Type = "illegal_transition"
		default:
			d.Type = "conflict"
		}
		out = append(out, d)
	}
	return out
}
