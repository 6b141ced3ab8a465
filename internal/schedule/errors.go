package schedule

import (
	"errors"
	"fmt"

	"reservd/internal/model"
)

// ErrConcurrencyConflict is reported when a booking commit lost the race
// to another booking for the same slots. Callers must retry validation
// against fresh state instead of surfacing a stale acceptance.
var ErrConcurrencyConflict = errors.New("booking lost a concurrent commit race")

// ErrGridCorrupt marks a data-integrity violation: the stored
// reservation set for a date exceeds the window's capacity.
var ErrGridCorrupt = errors.New("slot capacity below zero")

// ConfigurationError means the shop's weekly schedule is malformed.
// It is a server-side configuration defect, not a request error.
type ConfigurationError struct {
	ShopID string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("shop %s schedule misconfigured: %s", e.ShopID, e.Reason)
}

// InvalidTimeRangeError means the user-supplied time range fails
// alignment or bounds checks.
type InvalidTimeRangeError struct {
	Range      model.TimeRange
	Constraint string
}

func (e *InvalidTimeRangeError) Error() string {
	return fmt.Sprintf("invalid time range %s: %s", e.Range, e.Constraint)
}

// SlotUnavailableError names the first requested slot with no remaining
// capacity, so clients can suggest alternatives.
type SlotUnavailableError struct {
	Slot int
}

func (e *SlotUnavailableError) Error() string {
	minute := e.Slot * SlotMinutes
	return fmt.Sprintf("slot %d (%02d:%02d) has no remaining capacity", e.Slot, minute/60, minute%60)
}

// BookingLimitError is a policy rejection: a non-admin user already
// holds the maximum number of reservations at the shop.
type BookingLimitError struct {
	Limit    int
	Existing int
}

func (e *BookingLimitError) Error() string {
	return fmt.Sprintf("booking limit reached: %d existing reservations, limit %d", e.Existing, e.Limit)
}
