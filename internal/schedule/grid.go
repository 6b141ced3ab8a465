package schedule

import (
	"fmt"

	"reservd/internal/model"
)

const (
	// SlotMinutes is the granularity of the booking grid.
	SlotMinutes = 30
	// SlotsPerDay is the number of bookable slots in one day.
	SlotsPerDay = 24 * 60 / SlotMinutes

	minutesPerDay = 24 * 60
)

// Grid holds the remaining bookable capacity for every half-hour slot
// of one (shop, date). It is derived state: rebuilt fresh from the
// authoritative reservation set for each validation or view request,
// never persisted.
type Grid struct {
	slots [SlotsPerDay]int
}

// BuildGrid produces a grid where every slot intersecting the window's
// operating hours starts at the window's capacity and every other slot
// at zero.
func BuildGrid(w model.OperationWindow) *Grid {
	var g Grid
	for i := range g.slots {
		start := i * SlotMinutes
		if start < w.End && start+SlotMinutes > w.Start {
			g.slots[i] = w.Capacity
		}
	}
	return &g
}

// Apply charges one unit of capacity for every slot the reservation
// touches; a partially covered slot is charged whole. A decrement below
// zero means the stored reservation set violates the capacity invariant
// and is reported as ErrGridCorrupt, never clamped.
func (g *Grid) Apply(tr model.TimeRange) error {
	lo, hi := tr.SlotSpan()
	if lo < 0 {
		lo = 0
	}
	if hi > SlotsPerDay {
		hi = SlotsPerDay
	}
	for i := lo; i < hi; i++ {
		if g.slots[i] <= 0 {
			return fmt.Errorf("slot %d: %w", i, ErrGridCorrupt)
		}
		g.slots[i]--
	}
	return nil
}

// Remaining returns the remaining capacity of a slot index.
func (g *Grid) Remaining(slot int) int {
	if slot < 0 || slot >= SlotsPerDay {
		return 0
	}
	return g.slots[slot]
}

// Slots returns a copy of the 48 per-slot remaining capacities.
func (g *Grid) Slots() [SlotsPerDay]int {
	return g.slots
}
