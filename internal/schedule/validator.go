package schedule

import (
	"context"
	"time"

	"reservd/internal/model"
)

// DefaultMaxPerUser is the default cap on active reservations a
// non-admin user may hold at one shop.
const DefaultMaxPerUser = 3

// Validator decides whether a proposed reservation is acceptable
// against a freshly built capacity grid. It is a pure decision function
// over the snapshot it is given and performs no writes.
type Validator struct {
	engine     *Engine
	maxPerUser int
}

// NewValidator creates a validator. maxPerUser <= 0 selects
// DefaultMaxPerUser.
func NewValidator(engine *Engine, maxPerUser int) *Validator {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	return &Validator{engine: engine, maxPerUser: maxPerUser}
}

// Validate returns nil when the proposed reservation is acceptable.
// Checks run in order and the first failing check wins: time-range
// alignment, slot capacity, per-user booking cap. existingCount is the
// user's reservation count at the shop across all dates.
func (v *Validator) Validate(ctx context.Context, shop *model.Shop, date time.Time, tr model.TimeRange, p model.Principal, existingCount int) error {
	if err := checkAlignment(tr); err != nil {
		return err
	}

	grid, err := v.engine.BuildGrid(ctx, shop, date)
	if err != nil {
		return err
	}
	lo, hi := tr.SlotSpan()
	for i := lo; i < hi; i++ {
		if grid.Remaining(i) <= 0 {
			return &SlotUnavailableError{Slot: i}
		}
	}

	if !p.IsAdmin() && existingCount >= v.maxPerUser {
		return &BookingLimitError{Limit: v.maxPerUser, Existing: existingCount}
	}
	return nil
}

func checkAlignment(tr model.TimeRange) error {
	switch {
	case tr.Start < 0 || tr.End > minutesPerDay:
		return &InvalidTimeRangeError{Range: tr, Constraint: "minutes must be within [0, 1440]"}
	case tr.Start >= tr.End:
		return &InvalidTimeRangeError{Range: tr, Constraint: "start must be before end"}
	case tr.Start%SlotMinutes != 0 || tr.End%SlotMinutes != 0:
		return &InvalidTimeRangeError{Range: tr, Constraint: "times must be aligned to 30 minutes"}
	}
	return nil
}
