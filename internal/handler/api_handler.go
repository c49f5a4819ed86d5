package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/EpicMandM/station-booking/internal/booking"
	"github.com/EpicMandM/station-booking/internal/logger"
	"github.com/EpicMandM/station-booking/internal/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Engine is the booking engine surface the HTTP layer drives.
type Engine interface {
	CreateReservation(ctx context.Context, requesterID, stationID string, start, end, now time.Time) (*models.Reservation, error)
	UpdateReservation(ctx context.Context, id int64, actor booking.Actor, start, end, now time.Time) (*models.Reservation, error)
	Accept(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error)
	Refuse(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error)
	Cancel(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error)
	Start(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error)
	Complete(ctx context.Context, id int64, actor booking.Actor, now time.Time) (*models.Reservation, error)
	GetReservation(ctx context.Context, id int64, actor booking.Actor) (*models.Reservation, error)
	ListByRequester(ctx context.Context, requesterID string, actor booking.Actor) ([]*models.Reservation, error)
	ListByStation(ctx context.Context, stationID string, actor booking.Actor) ([]*models.Reservation, error)
	PreviewConflicts(ctx context.Context, stationID string, start, end, now time.Time) ([]*models.Reservation, error)
}

type APIHandler struct {
	engine Engine
	logger *logger.Logger
	now    func() time.Time
}

func NewAPIHandler(engine Engine, log *logger.Logger) *APIHandler {
	return &APIHandler{
		engine: engine,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

const requestIDHeader = "X-Request-ID"

var registerValidators sync.Once

// NewRouter builds the gin engine serving the reservation API. An empty
// allowedOrigins list allows every origin.
func NewRouter(h *APIHandler, allowedOrigins []string) *gin.Engine {
	registerValidators.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("actorrole", actorRoleValidator)
		}
	})

	router := gin.New()
	router.Use(gin.Recovery(), requestID())

	cc := cors.DefaultConfig()
	cc.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch}
	cc.AllowHeaders = append(cc.AllowHeaders, actorIDHeader, actorRoleHeader, requestIDHeader)
	cc.ExposeHeaders = []string{requestIDHeader}
	if len(allowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = allowedOrigins
	}
	router.Use(cors.New(cc))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h.Register(router)
	return router
}

// Register mounts the reservation routes on g.
func (h *APIHandler) Register(g gin.IRouter) {
	g.POST("/reservations", h.CreateReservation)
	g.GET("/reservations", h.ListReservations)
	g.GET("/reservations/:id", h.GetReservation)
	g.PATCH("/reservations/:id", h.UpdateReservation)
	g.POST("/reservations/:id/accept", h.transition(booking.ActionAccept, h.engine.Accept))
	g.POST("/reservations/:id/refuse", h.transition(booking.ActionRefuse, h.engine.Refuse))
	g.POST("/reservations/:id/cancel", h.transition(booking.ActionCancel, h.engine.Cancel))
	g.POST("/reservations/:id/start", h.transition(booking.ActionStart, h.engine.Start))
	g.POST("/reservations/:id/complete", h.transition(booking.ActionComplete, h.engine.Complete))
	g.GET("/stations/:id/reservations", h.ListStationReservations)
	g.GET("/stations/:id/conflicts", h.PreviewConflicts)
}

func requestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set("request_id", id)
		ctx.Header(requestIDHeader, id)
		ctx.Next()
	}
}
