package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Service   BookingService
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret string
	Logger    zerolog.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Everything else requires an authenticated actor
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Post("/bookings", createBookingHandler(cfg.Service))
		r.Get("/bookings/{id}", getBookingHandler(cfg.Service))
		r.Patch("/bookings/{id}", editBookingHandler(cfg.Service))
		r.Delete("/bookings/{id}", deleteBookingHandler(cfg.Service))
		r.Post("/bookings/{id}/status", statusUpdateHandler(cfg.Service))

		r.Get("/doctors/{id}/slots", listSlotsHandler(cfg.Service))
		r.Get("/doctors/{id}/centers", listDoctorCentersHandler(cfg.Service))
		r.Get("/doctors/{id}/dates", listDoctorDatesHandler(cfg.Service))

		r.Post("/slots/populate", populateSlotsHandler(cfg.Service))
	})

	return r
}
