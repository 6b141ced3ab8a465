package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservd/internal/model"
)

// stubSource is an in-memory ReservationSource keyed by date.
type stubSource struct {
	mu    sync.Mutex
	byDay map[string][]model.Reservation
	err   error
}

func newStubSource() *stubSource {
	return &stubSource{byDay: make(map[string][]model.Reservation)}
}

func (s *stubSource) add(r model.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.Date.Format(model.DateLayout)
	s.byDay[key] = append(s.byDay[key], r)
}

func (s *stubSource) FindReservations(_ context.Context, _ string, date time.Time) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	key := date.Format(model.DateLayout)
	return append([]model.Reservation(nil), s.byDay[key]...), nil
}

// testShop is open 10:00-12:00 with capacity 2 on Mondays, 10:00-20:00
// on other days, and closed on Sundays.
func testShop() *model.Shop {
	op := make([]model.OperationWindow, 7)
	for i := range op {
		op[i] = model.OperationWindow{Weekday: i, Start: 600, End: 1200, Capacity: 2}
	}
	op[0] = model.OperationWindow{Weekday: 0, Start: 600, End: 720, Capacity: 2}
	op[6] = model.OperationWindow{Weekday: 6, Start: 0, End: 0, Capacity: 0}
	return &model.Shop{ID: "shop-1", Name: "Lotus Massage", Operation: op}
}

var (
	monday = day(2026, 1, 12)
	sunday = day(2026, 1, 18)
)

func newTestEngine(store ReservationSource) *Engine {
	return NewEngine(NewCalendar(time.Monday), store)
}

func TestEngine_BuildGrid(t *testing.T) {
	ctx := context.Background()

	t.Run("subtracts existing reservations", func(t *testing.T) {
		store := newStubSource()
		store.add(model.Reservation{ID: "r1", ShopID: "shop-1", Date: monday, Time: model.TimeRange{Start: 600, End: 660}})
		engine := newTestEngine(store)

		grid, err := engine.BuildGrid(ctx, testShop(), monday)
		require.NoError(t, err)
		assert.Equal(t, 1, grid.Remaining(20))
		assert.Equal(t, 1, grid.Remaining(21))
		assert.Equal(t, 2, grid.Remaining(22))
		assert.Equal(t, 2, grid.Remaining(23))
	})

	t.Run("idempotent with unchanged reservations", func(t *testing.T) {
		store := newStubSource()
		store.add(model.Reservation{ID: "r1", ShopID: "shop-1", Date: monday, Time: model.TimeRange{Start: 630, End: 720}})
		engine := newTestEngine(store)

		first, err := engine.BuildGrid(ctx, testShop(), monday)
		require.NoError(t, err)
		second, err := engine.BuildGrid(ctx, testShop(), monday)
		require.NoError(t, err)
		assert.Equal(t, first.Slots(), second.Slots())
	})

	t.Run("propagates storage failures unchanged", func(t *testing.T) {
		store := newStubSource()
		store.err = errors.New("db gone")
		engine := newTestEngine(store)

		_, err := engine.BuildGrid(ctx, testShop(), monday)
		assert.ErrorIs(t, err, store.err)
	})

	t.Run("overbooked reservation set reports corrupt data", func(t *testing.T) {
		store := newStubSource()
		for _, id := range []string{"r1", "r2", "r3"} {
			store.add(model.Reservation{ID: id, ShopID: "shop-1", Date: monday, Time: model.TimeRange{Start: 600, End: 630}})
		}
		engine := newTestEngine(store)

		_, err := engine.BuildGrid(ctx, testShop(), monday)
		assert.ErrorIs(t, err, ErrGridCorrupt)
	})
}

func TestEngine_BuildGrid_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(newStubSource())

	tests := []struct {
		name   string
		mutate func(s *model.Shop)
	}{
		{"missing windows", func(s *model.Shop) { s.Operation = s.Operation[:6] }},
		{"inverted window", func(s *model.Shop) { s.Operation[2].Start = 900; s.Operation[2].End = 600 }},
		{"misaligned window", func(s *model.Shop) { s.Operation[3].Start = 615 }},
		{"weekday mismatch", func(s *model.Shop) { s.Operation[4].Weekday = 5 }},
		{"negative capacity", func(s *model.Shop) { s.Operation[1].Capacity = -1 }},
		{"out of bounds", func(s *model.Shop) { s.Operation[5].End = 1470 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shop := testShop()
			tt.mutate(shop)

			_, err := engine.BuildGrid(ctx, shop, monday)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, shop.ID, cfgErr.ShopID)
		})
	}
}

func TestEngine_WeekSchedule(t *testing.T) {
	ctx := context.Background()
	store := newStubSource()
	engine := newTestEngine(store)
	shop := testShop()

	t.Run("seven days starting at week start", func(t *testing.T) {
		var dates []time.Time
		for ds := range engine.WeekSchedule(ctx, shop, day(2026, 1, 15)) {
			require.NoError(t, ds.Err)
			dates = append(dates, ds.Date)
		}
		require.Len(t, dates, 7)
		assert.Equal(t, monday, dates[0])
		assert.Equal(t, sunday, dates[6])
	})

	t.Run("restarted iteration sees fresh reservation state", func(t *testing.T) {
		week := engine.WeekSchedule(ctx, shop, monday)

		for ds := range week {
			if ds.Date.Equal(monday) {
				assert.Equal(t, 2, ds.Grid.Remaining(20))
			}
		}

		store.add(model.Reservation{ID: "r1", ShopID: shop.ID, Date: monday, Time: model.TimeRange{Start: 600, End: 630}})

		for ds := range week {
			if ds.Date.Equal(monday) {
				assert.Equal(t, 1, ds.Grid.Remaining(20))
			}
		}
	})

	t.Run("stops early when the consumer breaks", func(t *testing.T) {
		seen := 0
		for range engine.WeekSchedule(ctx, shop, monday) {
			seen++
			if seen == 2 {
				break
			}
		}
		assert.Equal(t, 2, seen)
	})
}
