package sheets

import (
	"testing"
	"time"

	"reservd/internal/model"
)

func TestReservationRowValues(t *testing.T) {
	date := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	createdAt := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

	r := &model.Reservation{
		ID:        "res-1",
		ShopID:    "shop-1",
		UserID:    "user-1",
		Date:      date,
		Time:      model.TimeRange{Start: 600, End: 660},
		CreatedAt: createdAt,
	}

	values := reservationRowValues(r)

	expected := []interface{}{
		"res-1",
		"shop-1",
		"user-1",
		"2026-01-12",
		"10:00",
		"11:00",
		"2026-01-10 09:30:00",
	}

	if len(values) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}

	for i, v := range values {
		if v != expected[i] {
			t.Errorf("At index %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

func TestCacheOperations(t *testing.T) {
	s := &SheetsService{
		rowCache: make(map[string]int),
	}

	s.setCachedRow("res-1", 5)
	row, ok := s.getCachedRow("res-1")
	if !ok || row != 5 {
		t.Errorf("Expected row 5, got %d (ok=%v)", row, ok)
	}

	s.deleteCachedRow("res-1")
	_, ok = s.getCachedRow("res-1")
	if ok {
		t.Errorf("Expected row to be deleted from cache")
	}

	s.setCachedRow("res-2", 10)
	s.ClearCache()
	_, ok = s.getCachedRow("res-2")
	if ok {
		t.Errorf("Expected cache to be cleared")
	}
}
