// Package api exposes the booking workflow over HTTP. Authentication
// is handled upstream; the resolved principal arrives in trusted
// headers set by the gateway.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"reservd/internal/model"
	"reservd/internal/schedule"
)

// BookingAPI is the surface the HTTP layer needs from the booking
// workflow.
type BookingAPI interface {
	Book(ctx context.Context, p model.Principal, shopID string, date time.Time, tr model.TimeRange) (*model.Reservation, error)
	Cancel(ctx context.Context, p model.Principal, reservationID string) error
	Reschedule(ctx context.Context, p model.Principal, reservationID string, newDate time.Time, newRange model.TimeRange) (*model.Reservation, error)
	ListReservations(ctx context.Context, p model.Principal) ([]model.Reservation, error)
	GetShop(ctx context.Context, shopID string) (*model.Shop, error)
	CreateShop(ctx context.Context, p model.Principal, shop *model.Shop) error
	DeleteShop(ctx context.Context, p model.Principal, shopID string) error
	DayGrid(ctx context.Context, shopID string, date time.Time) (*schedule.Grid, error)
	WeekSchedule(ctx context.Context, shopID string, anyDate time.Time) ([]schedule.DaySchedule, error)
}

// HTTPServer serves the reservation API.
type HTTPServer struct {
	svc     BookingAPI
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewHTTPServer constructs the API server with a global token-bucket
// rate limit.
func NewHTTPServer(svc BookingAPI, rps float64, burst int, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Routes returns the API handler.
func (s *HTTPServer) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/shops/{id}/schedule", s.handleWeekSchedule)
	mux.HandleFunc("GET /api/v1/shops/{id}/availability", s.handleDayAvailability)
	mux.HandleFunc("POST /api/v1/shops/{id}/reservations", s.handleBook)

	mux.HandleFunc("GET /api/v1/reservations", s.handleListReservations)
	mux.HandleFunc("GET /api/v1/reservations/export", s.handleExport)
	mux.HandleFunc("PUT /api/v1/reservations/{id}", s.handleReschedule)
	mux.HandleFunc("DELETE /api/v1/reservations/{id}", s.handleCancel)

	mux.HandleFunc("POST /api/v1/shops", s.handleCreateShop)
	mux.HandleFunc("DELETE /api/v1/shops/{id}", s.handleDeleteShop)

	return s.rateLimit(mux)
}
