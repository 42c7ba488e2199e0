// Package http exposes the scheduling service over a JSON REST API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vetcare/backend/internal/calendar"
	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/service/scheduling"
)

// Scheduler is the part of the scheduling service the API serves.
type Scheduler interface {
	SuggestSlots(ctx context.Context, vetID uuid.UUID, date calendar.Date, durationMinutes int) ([]calendar.TimeOfDay, error)
	BookAppointment(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]domain.Appointment, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	CompleteAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, newDate calendar.Date, newStart calendar.TimeOfDay) (domain.Appointment, error)

	AddWeeklyAvailability(ctx context.Context, in scheduling.WeeklyAvailabilityInput) (domain.WeeklyAvailability, error)
	RemoveWeeklyAvailability(ctx context.Context, vetID, id uuid.UUID) error
	ListWeeklyAvailability(ctx context.Context, vetID uuid.UUID) ([]domain.WeeklyAvailability, error)
	AddHoliday(ctx context.Context, in scheduling.HolidayInput) (domain.Holiday, error)
	RemoveHoliday(ctx context.Context, vetID, id uuid.UUID) error
	ListHolidays(ctx context.Context, vetID uuid.UUID, from, to calendar.Date) ([]domain.Holiday, error)
}

type Options struct {
	Logger *slog.Logger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Ready reports whether dependencies are reachable; /healthz returns 503
	// while it fails.
	Ready func(ctx context.Context) error
}

type Handler struct {
	svc   Scheduler
	log   *slog.Logger
	ready func(ctx context.Context) error
}

func NewRouter(svc Scheduler, opts Options) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{svc: svc, log: log.With(slog.String("component", "http")), ready: opts.Ready}

	router := gin.New()
	router.Use(requestID(), h.requestLogger(), h.recovery())

	router.GET("/healthz", h.healthz)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/available-times", h.availableTimes)

		api.POST("/appointments", h.bookAppointment)
		api.GET("/appointments", h.listAppointments)
		api.GET("/appointments/:id", h.getAppointment)
		api.POST("/appointments/:id/confirm", h.transition(svc.ConfirmAppointment))
		api.POST("/appointments/:id/cancel", h.transition(svc.CancelAppointment))
		api.POST("/appointments/:id/complete", h.transition(svc.CompleteAppointment))
		api.POST("/appointments/:id/no-show", h.transition(svc.MarkNoShow))
		api.POST("/appointments/:id/reschedule", h.rescheduleAppointment)

		api.GET("/veterinarians/:id/availability", h.listAvailability)
		api.POST("/veterinarians/:id/availability", h.addAvailability)
		api.DELETE("/veterinarians/:id/availability/:availabilityId", h.removeAvailability)
		api.GET("/veterinarians/:id/holidays", h.listHolidays)
		api.POST("/veterinarians/:id/holidays", h.addHoliday)
		api.DELETE("/veterinarians/:id/holidays/:holidayId", h.removeHoliday)
	}
	return router, nil
}

func (h *Handler) healthz(c *gin.Context) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			h.log.Warn("readiness check failed", slog.Any("err", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
