package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservd/internal/model"
	"reservd/internal/repository"
	"reservd/internal/schedule"
	"reservd/internal/service"
)

// stubService returns canned results per method.
type stubService struct {
	bookFn    func(ctx context.Context, p model.Principal, shopID string, date time.Time, tr model.TimeRange) (*model.Reservation, error)
	cancelFn  func(ctx context.Context, p model.Principal, id string) error
	dayGridFn func(ctx context.Context, shopID string, date time.Time) (*schedule.Grid, error)
	weekFn    func(ctx context.Context, shopID string, anyDate time.Time) ([]schedule.DaySchedule, error)
	listFn    func(ctx context.Context, p model.Principal) ([]model.Reservation, error)
}

func (s *stubService) Book(ctx context.Context, p model.Principal, shopID string, date time.Time, tr model.TimeRange) (*model.Reservation, error) {
	return s.bookFn(ctx, p, shopID, date, tr)
}

func (s *stubService) Cancel(ctx context.Context, p model.Principal, id string) error {
	return s.cancelFn(ctx, p, id)
}

func (s *stubService) Reschedule(ctx context.Context, p model.Principal, id string, newDate time.Time, newRange model.TimeRange) (*model.Reservation, error) {
	return s.bookFn(ctx, p, "", newDate, newRange)
}

func (s *stubService) ListReservations(ctx context.Context, p model.Principal) ([]model.Reservation, error) {
	return s.listFn(ctx, p)
}

func (s *stubService) GetShop(ctx context.Context, shopID string) (*model.Shop, error) {
	return nil, repository.ErrNotFound
}

func (s *stubService) CreateShop(ctx context.Context, p model.Principal, shop *model.Shop) error {
	if !p.IsAdmin() {
		return service.ErrNotAllowed
	}
	shop.ID = "shop-new"
	return nil
}

func (s *stubService) DeleteShop(ctx context.Context, p model.Principal, shopID string) error {
	if !p.IsAdmin() {
		return service.ErrNotAllowed
	}
	return nil
}

func (s *stubService) DayGrid(ctx context.Context, shopID string, date time.Time) (*schedule.Grid, error) {
	return s.dayGridFn(ctx, shopID, date)
}

func (s *stubService) WeekSchedule(ctx context.Context, shopID string, anyDate time.Time) ([]schedule.DaySchedule, error) {
	return s.weekFn(ctx, shopID, anyDate)
}

func newTestServer(svc BookingAPI) http.Handler {
	logger := zerolog.New(io.Discard)
	return NewHTTPServer(svc, 1000, 1000, &logger).Routes()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func userHeaders(id string) map[string]string {
	return map[string]string{headerUserID: id}
}

func adminHeaders(id string) map[string]string {
	return map[string]string{headerUserID: id, headerRole: "admin"}
}

func TestBookEndpoint(t *testing.T) {
	svc := &stubService{
		bookFn: func(_ context.Context, p model.Principal, shopID string, date time.Time, tr model.TimeRange) (*model.Reservation, error) {
			assert.Equal(t, "alice", p.UserID)
			assert.Equal(t, "shop-1", shopID)
			return &model.Reservation{
				ID: "res-1", ShopID: shopID, UserID: p.UserID,
				Date: date, Time: tr, CreatedAt: time.Now(),
			}, nil
		},
	}
	h := newTestServer(svc)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/shops/shop-1/reservations",
		`{"date":"2026-01-12","start_minute":600,"end_minute":660}`, userHeaders("alice"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp reservationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "res-1", resp.ID)
	assert.Equal(t, "2026-01-12", resp.Date)
	assert.Equal(t, 600, resp.StartMinute)
}

func TestBookEndpointRequiresPrincipal(t *testing.T) {
	h := newTestServer(&stubService{})
	rec := doRequest(t, h, http.MethodPost, "/api/v1/shops/shop-1/reservations",
		`{"date":"2026-01-12","start_minute":600,"end_minute":660}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookEndpointRejectsBadDate(t *testing.T) {
	h := newTestServer(&stubService{})
	rec := doRequest(t, h, http.MethodPost, "/api/v1/shops/shop-1/reservations",
		`{"date":"12.01.2026","start_minute":600,"end_minute":660}`, userHeaders("alice"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid range", &schedule.InvalidTimeRangeError{Range: model.TimeRange{Start: 610, End: 640}, Constraint: "not aligned"}, http.StatusBadRequest},
		{"slot unavailable", &schedule.SlotUnavailableError{Slot: 20}, http.StatusConflict},
		{"booking limit", &schedule.BookingLimitError{Limit: 3, Existing: 3}, http.StatusForbidden},
		{"concurrency conflict", schedule.ErrConcurrencyConflict, http.StatusConflict},
		{"unknown shop", repository.ErrNotFound, http.StatusNotFound},
		{"not allowed", service.ErrNotAllowed, http.StatusForbidden},
		{"misconfigured shop", &schedule.ConfigurationError{ShopID: "shop-1", Reason: "expected 7 operation windows, got 5"}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{
				bookFn: func(context.Context, model.Principal, string, time.Time, model.TimeRange) (*model.Reservation, error) {
					return nil, tc.err
				},
			}
			rec := doRequest(t, newTestServer(svc), http.MethodPost, "/api/v1/shops/shop-1/reservations",
				`{"date":"2026-01-12","start_minute":600,"end_minute":660}`, userHeaders("alice"))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestDayAvailabilityEndpoint(t *testing.T) {
	svc := &stubService{
		dayGridFn: func(_ context.Context, shopID string, date time.Time) (*schedule.Grid, error) {
			assert.Equal(t, "shop-1", shopID)
			return schedule.BuildGrid(model.OperationWindow{Weekday: 1, Start: 600, End: 660, Capacity: 2}), nil
		},
	}
	rec := doRequest(t, newTestServer(svc), http.MethodGet, "/api/v1/shops/shop-1/availability?date=2026-01-12", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dayScheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-01-12", resp.Date)
	require.Len(t, resp.Slots, schedule.SlotsPerDay)
	assert.Equal(t, 2, resp.Slots[20])
	assert.Equal(t, 0, resp.Slots[0])
}

func TestWeekScheduleEndpoint(t *testing.T) {
	svc := &stubService{
		weekFn: func(_ context.Context, shopID string, _ time.Time) ([]schedule.DaySchedule, error) {
			days := make([]schedule.DaySchedule, 0, 7)
			start := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
			for i := 0; i < 7; i++ {
				days = append(days, schedule.DaySchedule{
					Date: start.AddDate(0, 0, i),
					Grid: schedule.BuildGrid(model.OperationWindow{Weekday: i, Start: 600, End: 660, Capacity: 1}),
				})
			}
			return days, nil
		},
	}
	rec := doRequest(t, newTestServer(svc), http.MethodGet, "/api/v1/shops/shop-1/schedule?date=2026-01-14", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Days []dayScheduleResponse `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Days, 7)
	assert.Equal(t, "2026-01-12", resp.Days[0].Date)
	assert.Equal(t, "2026-01-18", resp.Days[6].Date)
}

func TestCreateShopRequiresAdmin(t *testing.T) {
	h := newTestServer(&stubService{})
	body := `{"name":"Corner Shop","operation":[]}`

	rec := doRequest(t, h, http.MethodPost, "/api/v1/shops", body, userHeaders("alice"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/v1/shops", body, adminHeaders("root"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestExportRequiresAdmin(t *testing.T) {
	svc := &stubService{
		listFn: func(_ context.Context, p model.Principal) ([]model.Reservation, error) {
			return []model.Reservation{{ID: "res-1", Date: time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)}}, nil
		},
	}
	h := newTestServer(svc)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/reservations/export", "", userHeaders("alice"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/reservations/export", "", adminHeaders("root"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())
}

func TestRateLimit(t *testing.T) {
	logger := zerolog.New(io.Discard)
	h := NewHTTPServer(&stubService{
		listFn: func(context.Context, model.Principal) ([]model.Reservation, error) { return nil, nil },
	}, 1, 2, &logger).Routes()

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/reservations", "", userHeaders("alice"))
		codes[rec.Code]++
	}
	assert.Equal(t, 2, codes[http.StatusOK])
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])
}
