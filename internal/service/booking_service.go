package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reservd/internal/events"
	"reservd/internal/metrics"
	"reservd/internal/model"
	"reservd/internal/schedule"
)

// ErrNotAllowed is returned when a principal acts on a resource it does
// not own and is not an admin.
var ErrNotAllowed = errors.New("not allowed")

// Repository is the storage collaborator of the booking workflow.
type Repository interface {
	GetShop(ctx context.Context, id string) (*model.Shop, error)
	CreateShop(ctx context.Context, shop *model.Shop) error
	DeleteShop(ctx context.Context, id string) error
	FindReservations(ctx context.Context, shopID string, date time.Time) ([]model.Reservation, error)
	CountReservations(ctx context.Context, userID, shopID string) (int, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	DeleteReservationsByShop(ctx context.Context, shopID string) (int64, error)
	ListReservations(ctx context.Context) ([]model.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID string) ([]model.Reservation, error)
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingService runs the booking workflow. The capacity check and the
// subsequent insert are serialized per (shop, date) with a keyed mutex,
// so two concurrent requests cannot both observe free capacity and both
// commit.
type BookingService struct {
	repo          Repository
	engine        *schedule.Engine
	validator     *schedule.Validator
	bus           EventPublisher
	commitRetries int
	logger        *zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewBookingService constructs the booking workflow service.
func NewBookingService(repo Repository, engine *schedule.Engine, validator *schedule.Validator, bus EventPublisher, commitRetries int, logger *zerolog.Logger) *BookingService {
	if commitRetries <= 0 {
		commitRetries = 3
	}
	return &BookingService{
		repo:          repo,
		engine:        engine,
		validator:     validator,
		bus:           bus,
		commitRetries: commitRetries,
		logger:        logger,
		locks:         make(map[string]*sync.Mutex),
	}
}

// Book validates and persists a reservation for the principal. On
// acceptance the created reservation is returned; on rejection exactly
// one typed reason from the schedule package is returned.
func (s *BookingService) Book(ctx context.Context, p model.Principal, shopID string, date time.Time, tr model.TimeRange) (*model.Reservation, error) {
	date = dateOnly(date)
	mu := s.dateLock(shopID, date)
	mu.Lock()
	defer mu.Unlock()

	return s.commitReservation(ctx, p, p.UserID, shopID, date, tr, "")
}

// Cancel deletes a reservation. Only the owner or an admin may cancel.
func (s *BookingService) Cancel(ctx context.Context, p model.Principal, reservationID string) error {
	r, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if r.UserID != p.UserID && !p.IsAdmin() {
		return ErrNotAllowed
	}
	if err := s.repo.DeleteReservation(ctx, r.ID); err != nil {
		return err
	}

	metrics.IncReservationCancelled()
	_ = s.bus.PublishJSON(events.ReservationCancelled, r)
	s.logger.Info().Str("reservation_id", r.ID).Str("shop_id", r.ShopID).Msg("reservation cancelled")
	return nil
}

// Reschedule moves a reservation to a new date and time range. Time
// fields are never updated in place: a new reservation is created and
// the old one deleted, leaving no trace if either step fails. The
// reservation being replaced does not count against the per-user cap.
func (s *BookingService) Reschedule(ctx context.Context, p model.Principal, reservationID string, newDate time.Time, newRange model.TimeRange) (*model.Reservation, error) {
	old, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if old.UserID != p.UserID && !p.IsAdmin() {
		return nil, ErrNotAllowed
	}

	newDate = dateOnly(newDate)
	mu := s.dateLock(old.ShopID, newDate)
	mu.Lock()
	defer mu.Unlock()

	created, err := s.commitReservation(ctx, p, old.UserID, old.ShopID, newDate, newRange, old.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteReservation(ctx, old.ID); err != nil {
		_ = s.repo.DeleteReservation(ctx, created.ID)
		return nil, fmt.Errorf("remove rescheduled reservation: %w", err)
	}

	_ = s.bus.PublishJSON(events.ReservationRescheduled, map[string]*model.Reservation{"old": old, "new": created})
	s.logger.Info().Str("old_id", old.ID).Str("new_id", created.ID).Msg("reservation rescheduled")
	return created, nil
}

// commitReservation runs check-then-insert under the caller-held date
// lock, retrying validation against fresh state when the storage layer
// reports a lost commit race. excludeID names a reservation of the same
// owner that is about to be replaced and is excluded from the cap.
func (s *BookingService) commitReservation(ctx context.Context, p model.Principal, ownerID, shopID string, date time.Time, tr model.TimeRange, excludeID string) (*model.Reservation, error) {
	for attempt := 0; ; attempt++ {
		shop, err := s.repo.GetShop(ctx, shopID)
		if err != nil {
			return nil, err
		}
		count, err := s.repo.CountReservations(ctx, ownerID, shopID)
		if err != nil {
			return nil, err
		}
		if excludeID != "" && count > 0 {
			count--
		}

		if err := s.validator.Validate(ctx, shop, date, tr, p, count); err != nil {
			metrics.IncReservationRejected(rejectionReason(err))
			return nil, err
		}

		r := &model.Reservation{
			ID:        uuid.NewString(),
			ShopID:    shopID,
			UserID:    ownerID,
			Date:      date,
			Time:      tr,
			CreatedAt: time.Now(),
		}
		err = s.repo.InsertReservation(ctx, r)
		if errors.Is(err, schedule.ErrConcurrencyConflict) && attempt < s.commitRetries {
			metrics.IncConflictRetry()
			s.logger.Warn().Str("shop_id", shopID).Int("attempt", attempt+1).Msg("booking commit lost race, re-validating")
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.IncReservationCreated()
		_ = s.bus.PublishJSON(events.ReservationCreated, r)
		s.logger.Info().
			Str("reservation_id", r.ID).
			Str("shop_id", shopID).
			Str("user_id", ownerID).
			Str("range", tr.String()).
			Msg("reservation created")
		return r, nil
	}
}

// ListReservations returns the principal's reservations; admins see all.
func (s *BookingService) ListReservations(ctx context.Context, p model.Principal) ([]model.Reservation, error) {
	if p.IsAdmin() {
		return s.repo.ListReservations(ctx)
	}
	return s.repo.ListReservationsByUser(ctx, p.UserID)
}

// GetShop loads a shop for read-only use.
func (s *BookingService) GetShop(ctx context.Context, shopID string) (*model.Shop, error) {
	return s.repo.GetShop(ctx, shopID)
}

// CreateShop validates and persists a shop's weekly schedule (admin
// only). A malformed schedule is rejected up front rather than
// surfacing later as a ConfigurationError on every booking.
func (s *BookingService) CreateShop(ctx context.Context, p model.Principal, shop *model.Shop) error {
	if !p.IsAdmin() {
		return ErrNotAllowed
	}
	if shop.ID == "" {
		shop.ID = uuid.NewString()
	}
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now()
	}
	if err := schedule.ValidateWeeklySchedule(shop); err != nil {
		return err
	}
	if err := s.repo.CreateShop(ctx, shop); err != nil {
		return err
	}
	s.logger.Info().Str("shop_id", shop.ID).Str("name", shop.Name).Msg("shop created")
	return nil
}

// DeleteShop removes a shop as an explicit two-step workflow: delete
// its reservations, then the shop itself. A failure between the steps
// leaves a shop without reservations, which is safe to retry.
func (s *BookingService) DeleteShop(ctx context.Context, p model.Principal, shopID string) error {
	if !p.IsAdmin() {
		return ErrNotAllowed
	}
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return err
	}

	removed, err := s.repo.DeleteReservationsByShop(ctx, shopID)
	if err != nil {
		return fmt.Errorf("delete shop reservations: %w", err)
	}
	if err := s.repo.DeleteShop(ctx, shopID); err != nil {
		return fmt.Errorf("delete shop: %w", err)
	}

	_ = s.bus.PublishJSON(events.ShopDeleted, map[string]any{"shop_id": shopID, "reservations_removed": removed})
	s.logger.Info().Str("shop_id", shopID).Int64("reservations_removed", removed).Msg("shop deleted")
	return nil
}

// DayGrid returns the remaining capacity grid for one (shop, date).
func (s *BookingService) DayGrid(ctx context.Context, shopID string, date time.Time) (*schedule.Grid, error) {
	shop, err := s.repo.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return s.engine.BuildGrid(ctx, shop, dateOnly(date))
}

// WeekSchedule materializes the week view for a shop. Each call
// recomputes every day from the current reservation state.
func (s *BookingService) WeekSchedule(ctx context.Context, shopID string, anyDate time.Time) ([]schedule.DaySchedule, error) {
	shop, err := s.repo.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	days := make([]schedule.DaySchedule, 0, 7)
	for ds := range s.engine.WeekSchedule(ctx, shop, anyDate) {
		if ds.Err != nil {
			return nil, ds.Err
		}
		days = append(days, ds)
	}
	return days, nil
}

// dateLock returns the mutex serializing bookings for one (shop, date).
func (s *BookingService) dateLock(shopID string, date time.Time) *sync.Mutex {
	key := shopID + ":" + date.Format(model.DateLayout)
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	return mu
}

func rejectionReason(err error) string {
	var (
		rangeErr *schedule.InvalidTimeRangeError
		slotErr  *schedule.SlotUnavailableError
		limitErr *schedule.BookingLimitError
		cfgErr   *schedule.ConfigurationError
	)
	switch {
	case errors.As(err, &rangeErr):
		return "invalid_time_range"
	case errors.As(err, &slotErr):
		return "slot_unavailable"
	case errors.As(err, &limitErr):
		return "booking_limit"
	case errors.As(err, &cfgErr):
		return "configuration"
	default:
		return "other"
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
