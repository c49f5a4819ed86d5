package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EpicMandM/station-booking/internal/models"
	"github.com/EpicMandM/station-booking/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingDueStore struct {
	*store.MemoryStore
}

func (f failingDueStore) ListDue(context.Context, time.Time) ([]*models.Reservation, error) {
	return nil, errors.New("database is locked")
}

func TestSweep_StartsAndCompletesDueReservations(t *testing.T) {
	o, _, buf := newTestOrch(t)
	early := mustCreate(t, o, "alice", at(10, 0), at(11, 0))
	late := mustCreate(t, o, "bob", at(12, 0), at(13, 0))
	pending := mustCreate(t, o, "alice", at(14, 0), at(15, 0))
	mustAccept(t, o, early.ID)
	mustAccept(t, o, late.ID)

	sweeper := NewSweeper(o, time.Minute, o.Logger)

	result, err := sweeper.Sweep(context.Background(), at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Started: 1}, result)

	result, err = sweeper.Sweep(context.Background(), at(12, 30))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Started: 1, Completed: 1}, result)

	got, err := o.GetReservation(context.Background(), early.ID, olga)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, got.State)
	require.NotNil(t, got.TotalPrice)
	assert.InDelta(t, 30.0, *got.TotalPrice, 0.001)

	got, err = o.GetReservation(context.Background(), late.ID, olga)
	require.NoError(t, err)
	assert.Equal(t, models.StateInProgress, got.State)

	got, err = o.GetReservation(context.Background(), pending.ID, olga)
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, got.State)

	assert.Contains(t, buf.String(), "MESSAGE=Sweep finished")
	assert.Contains(t, buf.String(), "ROLE=system")
}

func TestSweep_OverdueAcceptedIsStartedAndCompletedInOnePass(t *testing.T) {
	o, _, _ := newTestOrch(t)
	res := mustCreate(t, o, "alice", at(10, 0), at(10, 45))
	mustAccept(t, o, res.ID)

	result, err := NewSweeper(o, time.Minute, o.Logger).Sweep(context.Background(), at(11, 0))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Started: 1, Completed: 1}, result)

	got, err := o.GetReservation(context.Background(), res.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, got.State)
	assert.InDelta(t, 22.5, *got.TotalPrice, 0.001)
}

func TestSweep_NothingDue(t *testing.T) {
	o, _, buf := newTestOrch(t)
	res := mustCreate(t, o, "alice", at(10, 0), at(11, 0))
	mustAccept(t, o, res.ID)

	result, err := NewSweeper(o, time.Minute, o.Logger).Sweep(context.Background(), at(9, 30))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
	assert.NotContains(t, buf.String(), "Sweep finished")
}

func TestSweep_SkipsFailures(t *testing.T) {
	o, mem, buf := newTestOrch(t)
	orphan, err := mem.SaveReservation(context.Background(), &models.Reservation{
		RequesterID: "alice",
		StationID:   "st-1",
		Start:       at(10, 0),
		End:         at(11, 0),
		State:       models.StateAccepted,
	})
	require.NoError(t, err)
	res := mustCreate(t, o, "bob", at(11, 0), at(12, 0))
	mustAccept(t, o, res.ID)

	result, err := NewSweeper(o, time.Minute, o.Logger).Sweep(context.Background(), at(11, 0))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Started: 1, Failed: 1}, result)
	assert.Contains(t, buf.String(), "MESSAGE=Sweep skipped reservation")

	got, err := mem.GetReservation(context.Background(), orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAccepted, got.State)
}

func TestSweep_ListError(t *testing.T) {
	o, mem, _ := newTestOrch(t)
	o.Reservations = failingDueStore{MemoryStore: mem}

	_, err := NewSweeper(o, time.Minute, o.Logger).Sweep(context.Background(), at(11, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestSweeper_StartRejectsNonPositiveInterval(t *testing.T) {
	o, _, _ := newTestOrch(t)

	err := NewSweeper(o, 0, o.Logger).Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep interval must be positive")
}

func TestSweeper_RunsOnSchedule(t *testing.T) {
	o, _, _ := newTestOrch(t)
	res := mustCreate(t, o, "alice", at(10, 0), at(11, 0))
	mustAccept(t, o, res.ID)

	sweeper := NewSweeper(o, 20*time.Millisecond, o.Logger)
	var calls atomic.Int32
	sweeper.now = func() time.Time {
		calls.Add(1)
		return at(11, 0)
	}

	require.NoError(t, sweeper.Start(context.Background()))
	assert.Eventually(t, func() bool {
		got, err := o.GetReservation(context.Background(), res.ID, alice)
		return err == nil && got.State == models.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, sweeper.Stop())
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	assert.NoError(t, sweeper.Stop())
}
