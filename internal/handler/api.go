package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/EpicMandM/station-booking/internal/booking"
	"github.com/EpicMandM/station-booking/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	actorIDHeader   = "X-Actor-ID"
	actorRoleHeader = "X-Actor-Role"
)

// Authentication happens upstream; these headers carry the verified identity.
type actorHeaders struct {
	ID   string `header:"X-Actor-ID" binding:"required"`
	Role string `header:"X-Actor-Role" binding:"required,actorrole"`
}

var actorRoleValidator validator.Func = func(fl validator.FieldLevel) bool {
	_, err := booking.ParseRole(fl.Field().String())
	return err == nil
}

// Missing times decode to the zero value and are reported by the engine.
type createRequest struct {
	StationID string    `json:"station_id" binding:"required"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

type updateRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (h *APIHandler) CreateReservation(ctx *gin.Context) {
	actor, ok := h.bindActor(ctx)
	if !ok {
		return
	}
	if actor.Role != booking.RoleRequester {
		h.respondError(ctx, &booking.AuthorizationError{
			Kind:    booking.ActorMismatch,
			Action:  "create",
			ActorID: actor.ID,
			Reason:  "only requesters may create reservations",
		})
		return
	}

	var body createRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		h.respondError(ctx, &booking.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	res, err := h.engine.CreateReservation(ctx.Request.Context(), actor.ID, body.StationID, body.Start, body.End, h.now())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"data": res})
}

func (h *APIHandler) UpdateReservation(ctx *gin.Context) {
	actor, ok := h.bindActor(ctx)
	if !ok {
		return
	}
	id, ok := h.bindID(ctx)
	if !ok {
		return
	}

	var body updateRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		h.respondError(ctx, &booking.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	res, err := h.engine.UpdateReservation(ctx.Request.Context(), id, actor, body.Start, body.End, h.now())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": res})
}

type transitionFunc func(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error)

func (h *APIHandler) transition(action booking.Action, apply transitionFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor, ok := h.bindActor(ctx)
		if !ok {
			return
		}
		id, ok := h.bindID(ctx)
		if !ok {
			return
		}

		res, err := apply(ctx.Request.Context(), id, actor, h.now())
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": res, "action": action})
	}
}

func (h *APIHandler) GetReservation(ctx *gin.Context) {
	actor, ok := h.bindActor(ctx)
	if !ok {
		return
	}
	id, ok := h.bindID(ctx)
	if !ok {
		return
	}

	res, err := h.engine.GetReservation(ctx.Request.Context(), id, actor)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": res})
}

// ListReservations serves GET /reservations?requester=. The requester
// defaults to the calling actor.
func (h *APIHandler) ListReservations(ctx *gin.Context) {
	actor, ok := h.bindActor(ctx)
	if !ok {
		return
	}
	requester := ctx.DefaultQuery("requester", actor.ID)

	list, err := h.engine.ListByRequester(ctx.Request.Context(), requester, actor)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	respondList(ctx, list)
}

func (h *APIHandler) ListStationReservations(ctx *gin.Context) {
	actor, ok := h.bindActor(ctx)
	if !ok {
		return
	}

	list, err := h.engine.ListByStation(ctx.Request.Context(), ctx.Param("id"), actor)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	respondList(ctx, list)
}

// PreviewConflicts serves GET /stations/:id/conflicts?start=&end= with
// RFC 3339 times. It needs no actor.
func (h *APIHandler) PreviewConflicts(ctx *gin.Context) {
	start, ok := h.bindTimeQuery(ctx, "start")
	if !ok {
		return
	}
	end, ok := h.bindTimeQuery(ctx, "end")
	if !ok {
		return
	}

	conflicts, err := h.engine.PreviewConflicts(ctx.Request.Context(), ctx.Param("id"), start, end, h.now())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ids := make([]int64, 0, len(conflicts))
	for _, r := range conflicts {
		ids = append(ids, r.ID)
	}
	ctx.JSON(http.StatusOK, gin.H{"conflicting_ids": ids, "available": len(ids) == 0})
}

func (h *APIHandler) bindActor(ctx *gin.Context) (booking.Actor, bool) {
	var hdr actorHeaders
	if err := ctx.ShouldBindHeader(&hdr); err != nil {
		h.respondError(ctx, &booking.ValidationError{
			Field:   "actor",
			Message: actorIDHeader + " and " + actorRoleHeader + " (requester or owner) headers are required",
		})
		return booking.Actor{}, false
	}
	return booking.Actor{ID: hdr.ID, Role: booking.Role(hdr.Role)}, true
}

func (h *APIHandler) bindID(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(ctx, &booking.ValidationError{Field: "id", Message: "reservation id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// bindTimeQuery leaves an absent parameter as the zero time.
func (h *APIHandler) bindTimeQuery(ctx *gin.Context, name string) (time.Time, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		h.respondError(ctx, &booking.ValidationError{Field: name, Message: name + " must be an RFC 3339 timestamp"})
		return time.Time{}, false
	}
	return t, true
}

func respondList(ctx *gin.Context, list []*models.Reservation) {
	if list == nil {
		list = []*models.Reservation{}
	}
	ctx.JSON(http.StatusOK, gin.H{"data": list, "count": len(list)})
}
