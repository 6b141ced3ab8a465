package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservd/internal/model"
)

func TestBuildGrid(t *testing.T) {
	t.Run("window fills only intersecting slots", func(t *testing.T) {
		g := BuildGrid(model.OperationWindow{Start: 600, End: 720, Capacity: 2})

		assert.Equal(t, 0, g.Remaining(19))
		for i := 20; i < 24; i++ {
			assert.Equal(t, 2, g.Remaining(i), "slot %d", i)
		}
		assert.Equal(t, 0, g.Remaining(24))
	})

	t.Run("zero-length window yields all-zero grid", func(t *testing.T) {
		g := BuildGrid(model.OperationWindow{Start: 600, End: 600, Capacity: 2})
		for i := 0; i < SlotsPerDay; i++ {
			assert.Equal(t, 0, g.Remaining(i), "slot %d", i)
		}
	})

	t.Run("full-day window fills every slot", func(t *testing.T) {
		g := BuildGrid(model.OperationWindow{Start: 0, End: 1440, Capacity: 1})
		for i := 0; i < SlotsPerDay; i++ {
			assert.Equal(t, 1, g.Remaining(i), "slot %d", i)
		}
	})
}

func TestGrid_Apply(t *testing.T) {
	window := model.OperationWindow{Start: 600, End: 720, Capacity: 2}

	t.Run("charges one unit per covered slot", func(t *testing.T) {
		g := BuildGrid(window)
		require.NoError(t, g.Apply(model.TimeRange{Start: 600, End: 660}))

		assert.Equal(t, 1, g.Remaining(20))
		assert.Equal(t, 1, g.Remaining(21))
		assert.Equal(t, 2, g.Remaining(22))
	})

	t.Run("partial slot occupancy charges the whole slot", func(t *testing.T) {
		g := BuildGrid(window)
		require.NoError(t, g.Apply(model.TimeRange{Start: 600, End: 645}))

		assert.Equal(t, 1, g.Remaining(20))
		assert.Equal(t, 1, g.Remaining(21))
	})

	t.Run("decrement below zero is a data-integrity error", func(t *testing.T) {
		g := BuildGrid(model.OperationWindow{Start: 600, End: 720, Capacity: 1})
		require.NoError(t, g.Apply(model.TimeRange{Start: 600, End: 660}))

		err := g.Apply(model.TimeRange{Start: 600, End: 630})
		assert.ErrorIs(t, err, ErrGridCorrupt)
	})

	t.Run("reservation over a closed slot is a data-integrity error", func(t *testing.T) {
		g := BuildGrid(window)
		err := g.Apply(model.TimeRange{Start: 540, End: 630})
		assert.ErrorIs(t, err, ErrGridCorrupt)
	})
}
