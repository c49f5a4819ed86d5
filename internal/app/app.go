package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/EpicMandM/station-booking/internal/config"
	"github.com/EpicMandM/station-booking/internal/handler"
	"github.com/EpicMandM/station-booking/internal/lock"
	"github.com/EpicMandM/station-booking/internal/logger"
	"github.com/EpicMandM/station-booking/internal/orchestrator"
	"github.com/EpicMandM/station-booking/internal/service"
	"github.com/EpicMandM/station-booking/internal/store"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// App wires the store, locker, calendar publisher, booking engine, sweeper
// and HTTP server together.
type App struct {
	config   *config.Config
	features *service.FeatureConfig
	logger   *logger.Logger

	store   store.Store
	redis   *redis.Client
	engine  *orchestrator.Orchestrator
	sweeper *orchestrator.Sweeper
	server  *http.Server
}

func New(cfg *config.Config, features *service.FeatureConfig, log *logger.Logger) *App {
	if log == nil {
		log = logger.NewWithWriter(io.Discard)
	}
	if features == nil {
		features = &service.FeatureConfig{}
	}
	return &App{
		config:   cfg,
		features: features,
		logger:   log,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	st, err := store.NewSQLiteStore(a.config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.store = st

	stations, err := a.features.StationModels()
	if err != nil {
		return err
	}
	if err := store.SeedStations(ctx, st, stations); err != nil {
		return fmt.Errorf("failed to seed stations: %w", err)
	}
	a.logger.Info("Stations seeded", logger.Action("startup"), logger.Count(len(stations)))

	locker, err := a.newLocker(ctx)
	if err != nil {
		return err
	}

	a.engine = &orchestrator.Orchestrator{
		Logger:       a.logger,
		Stations:     st,
		Reservations: st,
		Locker:       locker,
	}

	if a.features.Calendar.Enabled() {
		calendarSvc, err := service.NewCalendarService(ctx, a.features.Calendar)
		if err != nil {
			return fmt.Errorf("failed to initialize calendar service: %w", err)
		}
		a.engine.Calendar = calendarSvc
		a.logger.Info("Calendar publishing enabled", logger.Action("startup"), logger.F("CALENDAR", a.features.Calendar.CalendarID))
	}

	a.sweeper = orchestrator.NewSweeper(a.engine, a.config.SweepInterval, a.logger)

	router := handler.NewRouter(handler.NewAPIHandler(a.engine, a.logger), a.config.CORSOrigins)
	a.server = &http.Server{
		Addr:              a.config.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	if a.config.RedisURL == "" {
		a.logger.Info("Using in-process locks", logger.Action("startup"))
		return lock.NewKeyedMutex(), nil
	}

	client, err := lock.NewRedisClient(a.config.RedisURL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.logger.Info("Using redis lease locks", logger.Action("startup"), logger.F("LOCK_TTL", a.config.LockTTL.String()))
	return lock.NewRedisLocker(client, a.config.LockTTL, a.logger), nil
}

// Engine returns the booking engine; nil before Initialize.
func (a *App) Engine() *orchestrator.Orchestrator {
	return a.engine
}

// Handler returns the HTTP handler; nil before Initialize.
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return nil
	}
	return a.server.Handler
}

// Run starts the sweeper and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.sweeper.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", logger.Action("startup"), logger.F("ADDR", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down", logger.Action("shutdown"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

// Close releases everything Initialize acquired. It is safe to call after a
// failed Initialize.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
		}
	}
	if a.sweeper != nil {
		if err := a.sweeper.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop sweeper: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
