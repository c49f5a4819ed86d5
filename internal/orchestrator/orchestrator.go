package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/EpicMandM/station-booking/internal/booking"
	"github.com/EpicMandM/station-booking/internal/lock"
	"github.com/EpicMandM/station-booking/internal/logger"
	"github.com/EpicMandM/station-booking/internal/models"
	"github.com/EpicMandM/station-booking/internal/service"
	"github.com/EpicMandM/station-booking/internal/store"
)

// Orchestrator is the booking engine. It composes validation, station
// availability, conflict detection, authorization and the lifecycle table,
// and is the only code path that writes reservations.
type Orchestrator struct {
	Logger       *logger.Logger
	Stations     store.StationStore
	Reservations store.ReservationStore
	Locker       lock.Locker
	// Calendar is optional. When set, accepted reservations are published
	// after the transition commits.
	Calendar service.CalendarClient
}

// CreateReservation admits a new PENDING reservation for requesterID on
// stationID over [start, end). Every validation problem found is returned
// together as booking.Errors.
func (o *Orchestrator) CreateReservation(ctx context.Context, requesterID, stationID string, start, end, now time.Time) (*models.Reservation, error) {
	var errs booking.Errors
	if requesterID == "" {
		errs = errs.Add(&booking.ValidationError{Field: "requester_id", Message: "requester required"})
	}
	rangeErr := booking.ValidateTimeRange(start, end, now)
	errs = errs.Add(rangeErr)

	station, err := o.loadStation(ctx, stationID)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		return nil, o.rejected("create", stationID, 0, errs.Add(err).Err())
	}
	errs = errs.Add(checkAvailability(station))

	if rangeErr != nil {
		return nil, o.rejected("create", stationID, 0, errs.Err())
	}

	unlock, err := o.Locker.Lock(ctx, lock.StationKey(stationID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	errs, err = o.addConflicts(ctx, errs, stationID, start, end, 0)
	if err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, o.rejected("create", stationID, 0, err)
	}

	saved, err := o.Reservations.SaveReservation(ctx, &models.Reservation{
		RequesterID:  requesterID,
		StationID:    station.ID,
		OwnerID:      station.OwnerID,
		Start:        start,
		End:          end,
		State:        booking.InitialState,
		RateSnapshot: station.RatePerMinute,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, store.ErrSlotTaken) {
		return nil, o.rejected("create", stationID, 0, o.slotTaken(ctx, errs, stationID, start, end, 0))
	}
	if err != nil {
		o.Logger.Error("Failed to persist reservation", logger.Station(stationID), logger.Error(err))
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	o.Logger.Info("Reservation created",
		logger.Action("create"),
		logger.Status("admitted"),
		logger.Reservation(saved.ID),
		logger.Station(saved.StationID),
		logger.Actor(requesterID),
		logger.State(string(saved.State)))
	return saved, nil
}

// UpdateReservation moves a PENDING reservation to [start, end). The
// reservation's own slot is excluded from the conflict check.
func (o *Orchestrator) UpdateReservation(ctx context.Context, id int64, actor booking.Actor, start, end, now time.Time) (*models.Reservation, error) {
	current, err := o.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	// Station before reservation, matching admission.
	unlockStation, err := o.Locker.Lock(ctx, lock.StationKey(current.StationID))
	if err != nil {
		return nil, err
	}
	defer unlockStation()
	unlockReservation, err := o.Locker.Lock(ctx, lock.ReservationKey(id))
	if err != nil {
		return nil, err
	}
	defer unlockReservation()

	current, err = o.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := booking.Authorize(current, actor, booking.ActionUpdate); err != nil {
		return nil, o.rejected("update", current.StationID, id, err)
	}
	if current.State != models.StatePending {
		return nil, o.rejected("update", current.StationID, id,
			&booking.IllegalStateTransitionError{State: current.State, Action: booking.ActionUpdate})
	}

	var errs booking.Errors
	rangeErr := booking.ValidateTimeRange(start, end, now)
	errs = errs.Add(rangeErr)

	station, err := o.loadStation(ctx, current.StationID)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		return nil, o.rejected("update", current.StationID, id, errs.Add(err).Err())
	}
	errs = errs.Add(checkAvailability(station))

	if rangeErr == nil {
		errs, err = o.addConflicts(ctx, errs, current.StationID, start, end, id)
		if err != nil {
			return nil, err
		}
	}
	if err := errs.Err(); err != nil {
		return nil, o.rejected("update", current.StationID, id, err)
	}

	next := *current
	next.Start = start
	next.End = end
	next.UpdatedAt = now
	saved, err := o.Reservations.SaveReservation(ctx, &next)
	if errors.Is(err, store.ErrSlotTaken) {
		return nil, o.rejected("update", current.StationID, id, o.slotTaken(ctx, errs, current.StationID, start, end, id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation %d: %w", id, err)
	}

	o.Logger.Info("Reservation rescheduled",
		logger.Action("update"),
		logger.Reservation(id),
		logger.Station(saved.StationID),
		logger.Actor(actor.ID))
	return saved, nil
}

// Accept approves a PENDING reservation. Only the station owner may accept.
func (o *Orchestrator) Accept(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error) {
	return o.transition(ctx, id, actor, booking.ActionAccept, now)
}

// Refuse rejects a PENDING reservation and frees its slot.
func (o *Orchestrator) Refuse(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error) {
	return o.transition(ctx, id, actor, booking.ActionRefuse, now)
}

// Cancel withdraws a reservation that has not finished. Either party may cancel.
func (o *Orchestrator) Cancel(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error) {
	return o.transition(ctx, id, actor, booking.ActionCancel, now)
}

// Start begins an ACCEPTED session once its start time has been reached.
func (o *Orchestrator) Start(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error) {
	return o.transition(ctx, id, actor, booking.ActionStart, now)
}

// Complete closes an IN_PROGRESS session after its end time and prices it.
func (o *Orchestrator) Complete(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error) {
	return o.transition(ctx, id, actor, booking.ActionComplete, now)
}

func (o *Orchestrator) transition(ctx context.Context, id int64, actor booking.Actor, action booking.Action, now time.Time) (*models.Reservation, error) {
	prev, next, err := o.commitTransition(ctx, id, actor, action, now)
	if err != nil {
		return nil, err
	}

	fields := []logger.Field{
		logger.Action(string(action)),
		logger.Reservation(id),
		logger.Station(next.StationID),
		logger.Actor(actor.ID),
		logger.Role(string(actor.Role)),
		logger.State(string(next.State)),
	}
	if next.TotalPrice != nil {
		fields = append(fields, logger.F("TOTAL_PRICE", fmt.Sprintf("%.2f", *next.TotalPrice)))
	}
	o.Logger.Info("Reservation transitioned", fields...)

	o.publish(ctx, prev.State, next, action)
	return next, nil
}

// commitTransition holds the reservation lock only for the read-check-write;
// calendar publishing happens after it is released.
func (o *Orchestrator) commitTransition(ctx context.Context, id int64, actor booking.Actor, action booking.Action, now time.Time) (*models.Reservation, *models.Reservation, error) {
	unlock, err := o.Locker.Lock(ctx, lock.ReservationKey(id))
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	current, err := o.loadReservation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := booking.Authorize(current, actor, action); err != nil {
		return nil, nil, o.rejected(string(action), current.StationID, id, err)
	}
	next, err := booking.Apply(current, action, now)
	if err != nil {
		return nil, nil, o.rejected(string(action), current.StationID, id, err)
	}

	saved, err := o.Reservations.SaveReservation(ctx, next)
	if err != nil {
		o.Logger.Error("Failed to persist transition",
			logger.Action(string(action)),
			logger.Reservation(id),
			logger.Error(err))
		return nil, nil, fmt.Errorf("failed to %s reservation %d: %w", action, id, err)
	}
	return current, saved, nil
}

// publish mirrors lifecycle changes to the calendar. Failures are logged and
// never undo the committed transition. Publishes for one reservation are
// serialized, and an insert is skipped when a later transition has already
// moved the reservation out of its booked states.
func (o *Orchestrator) publish(ctx context.Context, from models.ReservationState, res *models.Reservation, action booking.Action) {
	if o.Calendar == nil {
		return
	}
	deleting := action == booking.ActionCancel && (from == models.StateAccepted || from == models.StateInProgress)
	if action != booking.ActionAccept && !deleting {
		return
	}

	unlock, err := o.Locker.Lock(ctx, lock.CalendarKey(res.ID))
	if err != nil {
		o.Logger.Error("Calendar sync failed", logger.Action(string(action)), logger.Reservation(res.ID), logger.Error(err))
		return
	}
	defer unlock()

	if deleting {
		err = o.Calendar.DeleteEvent(ctx, service.EventID(res.ID))
	} else {
		current, lerr := o.loadReservation(ctx, res.ID)
		if lerr != nil {
			o.Logger.Error("Calendar sync failed", logger.Action(string(action)), logger.Reservation(res.ID), logger.Error(lerr))
			return
		}
		if current.State != models.StateAccepted && current.State != models.StateInProgress && current.State != models.StateCompleted {
			o.Logger.Info("Calendar sync skipped",
				logger.Action(string(action)),
				logger.Reservation(res.ID),
				logger.State(string(current.State)))
			return
		}
		err = o.Calendar.InsertEvent(ctx, service.ReservationEvent(current))
	}

	if err != nil {
		o.Logger.Error("Calendar sync failed",
			logger.Action(string(action)),
			logger.Reservation(res.ID),
			logger.Error(err))
		return
	}
	o.Logger.Info("Calendar updated", logger.Action(string(action)), logger.Reservation(res.ID))
}

// GetReservation returns a reservation visible to actor.
func (o *Orchestrator) GetReservation(ctx context.Context, id int64, actor booking.Actor) (*models.Reservation, error) {
	res, err := o.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := booking.Authorize(res, actor, booking.ActionView); err != nil {
		return nil, err
	}
	return res, nil
}

// ListByRequester returns every reservation made by requesterID, including
// terminal ones. Requesters may only list their own history.
func (o *Orchestrator) ListByRequester(ctx context.Context, requesterID string, actor booking.Actor) ([]*models.Reservation, error) {
	if actor.Role != booking.RoleRequester || actor.ID == "" || actor.ID != requesterID {
		return nil, &booking.AuthorizationError{
			Kind:    booking.ActorMismatch,
			Action:  booking.ActionView,
			ActorID: actor.ID,
			Reason:  fmt.Sprintf("only requester %q may list their reservations", requesterID),
		}
	}
	return o.Reservations.ListByRequester(ctx, requesterID)
}

// ListByStation returns the full booking history of a station to its owner.
func (o *Orchestrator) ListByStation(ctx context.Context, stationID string, actor booking.Actor) ([]*models.Reservation, error) {
	station, err := o.loadStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if actor.Role != booking.RoleOwner || actor.ID == "" || actor.ID != station.OwnerID {
		return nil, &booking.AuthorizationError{
			Kind:    booking.ActorMismatch,
			Action:  booking.ActionView,
			ActorID: actor.ID,
			Reason:  fmt.Sprintf("actor %q does not own station %s", actor.ID, stationID),
		}
	}
	return o.Reservations.ListByStation(ctx, stationID)
}

// PreviewConflicts reports the active reservations [start, end) would collide
// with. It takes no lock and writes nothing, so the answer may be stale by the
// time a create is submitted.
func (o *Orchestrator) PreviewConflicts(ctx context.Context, stationID string, start, end, now time.Time) ([]*models.Reservation, error) {
	if err := booking.ValidateTimeRange(start, end, now); err != nil {
		return nil, err
	}
	if _, err := o.loadStation(ctx, stationID); err != nil {
		return nil, err
	}
	detector := booking.ConflictDetector{Reservations: o.Reservations}
	return detector.FindConflicts(ctx, stationID, start, end, 0)
}

func (o *Orchestrator) addConflicts(ctx context.Context, errs booking.Errors, stationID string, start, end time.Time, excludeID int64) (booking.Errors, error) {
	detector := booking.ConflictDetector{Reservations: o.Reservations}
	conflicts, err := detector.FindConflicts(ctx, stationID, start, end, excludeID)
	if err != nil {
		return errs, err
	}
	if len(conflicts) > 0 {
		errs = errs.Add(&booking.ConflictError{StationID: stationID, ConflictingIDs: booking.ConflictIDs(conflicts)})
	}
	return errs, nil
}

// slotTaken reports a write the store refused because another instance
// admitted an overlapping reservation first.
func (o *Orchestrator) slotTaken(ctx context.Context, errs booking.Errors, stationID string, start, end time.Time, excludeID int64) error {
	detector := booking.ConflictDetector{Reservations: o.Reservations}
	conflicts, err := detector.FindConflicts(ctx, stationID, start, end, excludeID)
	if err != nil {
		o.Logger.Warn("Failed to reload conflicts", logger.Station(stationID), logger.Error(err))
	}
	return errs.Add(&booking.ConflictError{StationID: stationID, ConflictingIDs: booking.ConflictIDs(conflicts)}).Err()
}

func (o *Orchestrator) loadStation(ctx context.Context, id string) (*models.Station, error) {
	st, err := o.Stations.GetStation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &booking.NotFoundError{Kind: "station", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load station %s: %w", id, err)
	}
	return st, nil
}

func (o *Orchestrator) loadReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	res, err := o.Reservations.GetReservation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &booking.NotFoundError{Kind: "reservation", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation %d: %w", id, err)
	}
	return res, nil
}

func (o *Orchestrator) rejected(action, stationID string, id int64, err error) error {
	fields := []logger.Field{logger.Action(action), logger.Status("rejected"), logger.Station(stationID)}
	if id != 0 {
		fields = append(fields, logger.Reservation(id))
	}
	var conflict *booking.ConflictError
	if errors.As(err, &conflict) {
		fields = append(fields, logger.Conflicts(len(conflict.ConflictingIDs)))
	}
	fields = append(fields, logger.Error(err))
	o.Logger.Warn("Request rejected", fields...)
	return err
}

func isNotFound(err error) bool {
	var nf *booking.NotFoundError
	return errors.As(err, &nf)
}

func checkAvailability(st *models.Station) error {
	if st.Status.Bookable() {
		return nil
	}
	return &booking.UnavailableResourceError{StationID: st.ID, Status: st.Status}
}
