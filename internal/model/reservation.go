package model

import (
	"fmt"
	"time"
)

// TimeRange is a booked time-box within a single day, in minutes since
// midnight. The range is half-open: [Start, End).
type TimeRange struct {
	Start int `json:"start_minute"`
	End   int `json:"end_minute"`
}

// SlotSpan returns the half-open slot index range [lo, hi) covered by
// the time range. A partially covered slot is charged whole.
func (t TimeRange) SlotSpan() (lo, hi int) {
	return t.Start / 30, (t.End + 29) / 30
}

// Overlaps reports whether two ranges share at least one minute.
func (t TimeRange) Overlaps(other TimeRange) bool {
	return t.Start < other.End && other.Start < t.End
}

func (t TimeRange) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", t.Start/60, t.Start%60, t.End/60, t.End%60)
}

// Reservation is a booked time-box at a shop. Time fields are never
// updated in place; rescheduling creates a new reservation and deletes
// the old one.
type Reservation struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shop_id"`
	UserID    string    `json:"user_id"`
	Date      time.Time `json:"date"`
	Time      TimeRange `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

// DateKey returns the day-granularity key used for storage lookups and
// booking serialization.
func (r *Reservation) DateKey() string {
	return r.Date.Format(DateLayout)
}
