package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"reservd/internal/export"
	"reservd/internal/metrics"
	"reservd/internal/model"
	"reservd/internal/repository"
	"reservd/internal/schedule"
	"reservd/internal/service"
)

type reservationRequest struct {
	Date        string `json:"date"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

type reservationResponse struct {
	ID          string `json:"id"`
	ShopID      string `json:"shop_id"`
	UserID      string `json:"user_id"`
	Date        string `json:"date"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	CreatedAt   string `json:"created_at"`
}

type dayScheduleResponse struct {
	Date  string `json:"date"`
	Slots []int  `json:"slots"`
}

type createShopRequest struct {
	Name      string                  `json:"name"`
	Address   string                  `json:"address"`
	Tel       string                  `json:"tel"`
	Operation []model.OperationWindow `json:"operation"`
}

func toReservationResponse(r *model.Reservation) reservationResponse {
	return reservationResponse{
		ID:          r.ID,
		ShopID:      r.ShopID,
		UserID:      r.UserID,
		Date:        r.DateKey(),
		StartMinute: r.Time.Start,
		EndMinute:   r.Time.End,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

func (s *HTTPServer) handleWeekSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("week_schedule")
	date, err := queryDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	days, err := s.svc.WeekSchedule(r.Context(), r.PathValue("id"), date)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]dayScheduleResponse, 0, len(days))
	for _, d := range days {
		slots := d.Grid.Slots()
		out = append(out, dayScheduleResponse{Date: d.Date.Format(model.DateLayout), Slots: slots[:]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": out})
}

func (s *HTTPServer) handleDayAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("day_availability")
	date, err := queryDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	grid, err := s.svc.DayGrid(r.Context(), r.PathValue("id"), date)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	slots := grid.Slots()
	writeJSON(w, http.StatusOK, dayScheduleResponse{Date: date.Format(model.DateLayout), Slots: slots[:]})
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book")
	p, err := principalFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := time.Parse(model.DateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	created, err := s.svc.Book(r.Context(), p, r.PathValue("id"), date, model.TimeRange{Start: req.StartMinute, End: req.EndMinute})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(created))
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_reservations")
	p, err := principalFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	reservations, err := s.svc.ListReservations(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]reservationResponse, 0, len(reservations))
	for i := range reservations {
		out = append(out, toReservationResponse(&reservations[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": out})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_reservations")
	p, err := principalFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !p.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	reservations, err := s.svc.ListReservations(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=reservations-%s.xlsx", time.Now().Format(model.DateLayout)))
	if err := export.WriteReservations(w, reservations); err != nil {
		s.logger.Error().Err(err).Msg("export reservations")
	}
}

func (s *HTTPServer) handleReschedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reschedule")
	p, err := principalFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := time.Parse(model.DateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	created, err := s.svc.Reschedule(r.Context(), p, r.PathValue("id"), date, model.TimeRange{Start: req.StartMinute, End: req.EndMinute})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(created))
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel")
	p, err := principalFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.svc.Cancel(r.Context(), p, r.PathValue("id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *HTTPServer) handleCreateShop(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_shop")
	p, err := principalFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req createShopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	shop := &model.Shop{Name: req.Name, Address: req.Address, Tel: req.Tel, Operation: req.Operation}
	if err := s.svc.CreateShop(r.Context(), p, shop); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, shop)
}

func (s *HTTPServer) handleDeleteShop(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_shop")
	p, err := principalFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.svc.DeleteShop(r.Context(), p, r.PathValue("id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// queryDate reads the optional date query parameter, defaulting to
// today.
func queryDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now(), nil
	}
	date, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return date, nil
}

// writeDomainError maps typed workflow errors onto HTTP statuses.
// Configuration defects stay server-side errors: the caller did
// nothing wrong.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	var (
		rangeErr *schedule.InvalidTimeRangeError
		slotErr  *schedule.SlotUnavailableError
		limitErr *schedule.BookingLimitError
		cfgErr   *schedule.ConfigurationError
	)
	switch {
	case errors.As(err, &rangeErr):
		writeError(w, http.StatusBadRequest, rangeErr.Error())
	case errors.As(err, &slotErr):
		writeError(w, http.StatusConflict, slotErr.Error())
	case errors.As(err, &limitErr):
		writeError(w, http.StatusForbidden, limitErr.Error())
	case errors.Is(err, schedule.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "booking conflict, please retry")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrNotAllowed):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.As(err, &cfgErr):
		s.logger.Error().Err(err).Msg("shop schedule misconfigured")
		writeError(w, http.StatusInternalServerError, "shop schedule misconfigured")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
