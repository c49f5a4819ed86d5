package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/EpicMandM/station-booking/internal/booking"
	"github.com/EpicMandM/station-booking/internal/logger"
	"github.com/EpicMandM/station-booking/internal/models"
	"github.com/go-co-op/gocron/v2"
)

// SweepResult counts the outcome of one sweep.
type SweepResult struct {
	Started   int
	Completed int
	Failed    int
}

// Sweeper drives time-based transitions: ACCEPTED reservations whose start
// has passed are started, IN_PROGRESS ones whose end has passed are completed.
// It acts as the system role through the engine, never on the store directly.
type Sweeper struct {
	engine    *Orchestrator
	logger    *logger.Logger
	interval  time.Duration
	now       func() time.Time
	scheduler gocron.Scheduler
}

func NewSweeper(engine *Orchestrator, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		engine:   engine,
		logger:   log,
		interval: interval,
		now:      time.Now,
	}
}

// Start schedules Sweep every interval until Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			_, _ = s.Sweep(ctx, s.now())
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("failed to schedule sweep job: %w", err)
	}
	sched.Start()
	s.scheduler = sched

	s.logger.Info("Lifecycle sweeper started", logger.Action("sweep"), logger.Interval(s.interval.String()))
	return nil
}

// Stop waits for a running sweep to finish and stops the scheduler.
func (s *Sweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	err := s.scheduler.Shutdown()
	s.scheduler = nil
	return err
}

// Sweep applies every due transition at now. A failing reservation is logged
// and skipped; the rest of the batch still runs.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	due, err := s.engine.Reservations.ListDue(ctx, now)
	if err != nil {
		s.logger.Error("Failed to list due reservations", logger.Action("sweep"), logger.Error(err))
		return result, fmt.Errorf("failed to list due reservations: %w", err)
	}

	for _, r := range due {
		state := r.State
		if state == models.StateAccepted {
			started, err := s.engine.Start(ctx, r.ID, booking.SystemActor, now)
			if err != nil {
				s.skip(r, booking.ActionStart, err)
				result.Failed++
				continue
			}
			result.Started++
			state = started.State
			if now.Before(started.End) {
				continue
			}
		}
		if state == models.StateInProgress {
			if _, err := s.engine.Complete(ctx, r.ID, booking.SystemActor, now); err != nil {
				s.skip(r, booking.ActionComplete, err)
				result.Failed++
				continue
			}
			result.Completed++
		}
	}

	if len(due) > 0 {
		s.logger.Info("Sweep finished",
			logger.Action("sweep"),
			logger.Count(len(due)),
			logger.Started(result.Started),
			logger.Completed(result.Completed),
			logger.Failed(result.Failed))
	}
	return result, nil
}

func (s *Sweeper) skip(r *models.Reservation, action booking.Action, err error) {
	s.logger.Warn("Sweep skipped reservation",
		logger.Action(string(action)),
		logger.Reservation(r.ID),
		logger.State(string(r.State)),
		logger.Error(err))
}
