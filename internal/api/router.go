package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/grooming-scheduler/internal/appointment"
)

type AppointmentService interface {
	GetAvailability(ctx context.Context, req appointment.AvailabilityRequest) (*appointment.Availability, error)
	ResolveServiceIDs(ctx context.Context, names []string) ([]string, error)
	CreateAppointment(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id string) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id, reason string) (*appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id string, to appointment.AppointmentStatus) (*appointment.Appointment, error)
}

type RouterConfig struct {
	Service  AppointmentService
	Postgres Pinger
	Redis    Pinger // nil when the catalog cache is disabled
	Metrics  http.Handler
	Logger   *slog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Post("/availability", availabilityHandler(cfg.Service, logger))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Service, logger))
		r.Get("/{id}", getAppointmentHandler(cfg.Service, logger))
		r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Service, logger))
		r.Post("/{id}/status", updateStatusHandler(cfg.Service, logger))
	})

	return r
}
