package schedule

import (
	"context"
	"fmt"
	"time"

	"reservd/internal/model"
)

// ReservationSource provides read-only access to booked reservations.
type ReservationSource interface {
	FindReservations(ctx context.Context, shopID string, date time.Time) ([]model.Reservation, error)
}

// Engine builds per-date capacity grids from a shop's weekly operating
// hours and the reservations already booked for the date.
type Engine struct {
	cal   *Calendar
	store ReservationSource
}

// NewEngine creates an availability engine over the given calendar and
// reservation source.
func NewEngine(cal *Calendar, store ReservationSource) *Engine {
	return &Engine{cal: cal, store: store}
}

// Calendar returns the calendar the engine normalizes dates with.
func (e *Engine) Calendar() *Calendar {
	return e.cal
}

// BuildGrid returns the currently remaining bookable capacity for every
// slot of the date. Storage failures propagate unchanged; a malformed
// weekly schedule fails with ConfigurationError.
func (e *Engine) BuildGrid(ctx context.Context, shop *model.Shop, date time.Time) (*Grid, error) {
	if err := ValidateWeeklySchedule(shop); err != nil {
		return nil, err
	}

	window, _ := shop.Window(e.cal.WeekdayIndex(date))
	grid := BuildGrid(window)

	reservations, err := e.store.FindReservations(ctx, shop.ID, date)
	if err != nil {
		return nil, fmt.Errorf("fetch reservations: %w", err)
	}
	for _, r := range reservations {
		if err := grid.Apply(r.Time); err != nil {
			return nil, fmt.Errorf("reservation %s: %w", r.ID, err)
		}
	}
	return grid, nil
}

// ValidateWeeklySchedule checks the seven-windows invariant. Violations
// are shop-configuration defects and are never silently defaulted.
func ValidateWeeklySchedule(shop *model.Shop) error {
	if len(shop.Operation) != daysPerWeek {
		return &ConfigurationError{
			ShopID: shop.ID,
			Reason: fmt.Sprintf("expected %d operation windows, got %d", daysPerWeek, len(shop.Operation)),
		}
	}
	for i, w := range shop.Operation {
		switch {
		case w.Weekday != i:
			return &ConfigurationError{ShopID: shop.ID, Reason: fmt.Sprintf("window %d has weekday %d", i, w.Weekday)}
		case w.Start < 0 || w.End > minutesPerDay:
			return &ConfigurationError{ShopID: shop.ID, Reason: fmt.Sprintf("window %d out of bounds: [%d, %d]", i, w.Start, w.End)}
		case w.Start > w.End:
			return &ConfigurationError{ShopID: shop.ID, Reason: fmt.Sprintf("window %d has start after end", i)}
		case w.Start%SlotMinutes != 0 || w.End%SlotMinutes != 0:
			return &ConfigurationError{ShopID: shop.ID, Reason: fmt.Sprintf("window %d not aligned to %d minutes", i, SlotMinutes)}
		case w.Capacity < 0:
			return &ConfigurationError{ShopID: shop.ID, Reason: fmt.Sprintf("window %d has negative capacity", i)}
		}
	}
	return nil
}
