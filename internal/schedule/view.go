package schedule

import (
	"context"
	"iter"
	"time"

	"reservd/internal/model"
)

// DaySchedule is one day's capacity grid inside a week view. Err is set
// when the day's grid could not be built (storage failure, malformed
// schedule); Grid is nil in that case.
type DaySchedule struct {
	Date time.Time
	Grid *Grid
	Err  error
}

// WeekSchedule returns a lazy sequence of seven day schedules, starting
// at the week containing anyDate. Grids are recomputed at iteration
// time and never cached, so restarting the sequence reflects the latest
// reservation state.
func (e *Engine) WeekSchedule(ctx context.Context, shop *model.Shop, anyDate time.Time) iter.Seq[DaySchedule] {
	start := e.cal.WeekStart(anyDate)
	return func(yield func(DaySchedule) bool) {
		for i := 0; i < daysPerWeek; i++ {
			date := start.AddDate(0, 0, i)
			grid, err := e.BuildGrid(ctx, shop, date)
			if !yield(DaySchedule{Date: date, Grid: grid, Err: err}) {
				return
			}
		}
	}
}
