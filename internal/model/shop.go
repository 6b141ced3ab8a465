package model

import "time"

// DateLayout is the wire and storage format for day-granularity dates.
const DateLayout = "2006-01-02"

// OperationWindow describes one weekday's operating hours for a shop.
// Start and End are minutes since midnight, aligned to 30 minutes.
// Capacity is the number of reservations that may run concurrently
// inside the window.
type OperationWindow struct {
	Weekday  int `json:"weekday"`
	Start    int `json:"start_minute"`
	End      int `json:"end_minute"`
	Capacity int `json:"capacity"`
}

// Shop owns exactly seven operation windows, one per weekday,
// ordered by weekday index (week start = index 0).
type Shop struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Address   string            `json:"address"`
	Tel       string            `json:"tel"`
	Operation []OperationWindow `json:"operation"`
	CreatedAt time.Time         `json:"created_at"`
}

// Window returns the operation window for a weekday index (0..6).
func (s *Shop) Window(weekday int) (OperationWindow, bool) {
	if weekday < 0 || weekday >= len(s.Operation) {
		return OperationWindow{}, false
	}
	return s.Operation[weekday], true
}
