// Package sheets mirrors reservations into a Google Sheets worksheet
// so staff without API access can follow the booking log.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"reservd/internal/events"
	"reservd/internal/model"
)

var headerRow = []interface{}{"ID", "Shop", "User", "Date", "Start", "End", "Created At"}

// SheetsService appends reservation rows to one worksheet. The row
// cache remembers which reservation landed in which row so a cancel
// can strike it out without rescanning the sheet.
type SheetsService struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        *zerolog.Logger

	mu       sync.Mutex
	rowCache map[string]int
	nextRow  int
}

// NewSheetsService authenticates with a service-account credentials
// file and prepares the worksheet header.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}

	s := &SheetsService{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
		rowCache:      make(map[string]int),
		nextRow:       2,
	}
	if err := s.writeHeader(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Attach subscribes the mirror to reservation lifecycle events.
func (s *SheetsService) Attach(bus *events.EventBus) {
	bus.Subscribe(events.ReservationCreated, s.onCreated)
	bus.Subscribe(events.ReservationCancelled, s.onCancelled)
}

func (s *SheetsService) onCreated(event events.Event) error {
	var r model.Reservation
	if err := json.Unmarshal(event.Payload, &r); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.AppendReservation(ctx, &r); err != nil {
		s.logger.Error().Err(err).Str("reservation_id", r.ID).Msg("sheets append failed")
		return err
	}
	return nil
}

func (s *SheetsService) onCancelled(event events.Event) error {
	var r model.Reservation
	if err := json.Unmarshal(event.Payload, &r); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.MarkCancelled(ctx, r.ID); err != nil {
		s.logger.Error().Err(err).Str("reservation_id", r.ID).Msg("sheets strike-out failed")
		return err
	}
	return nil
}

// AppendReservation writes one reservation row. Re-delivered events are
// deduplicated through the row cache.
func (s *SheetsService) AppendReservation(ctx context.Context, r *model.Reservation) error {
	s.mu.Lock()
	if _, ok := s.rowCache[r.ID]; ok {
		s.mu.Unlock()
		return nil
	}
	row := s.nextRow
	s.nextRow++
	s.rowCache[r.ID] = row
	s.mu.Unlock()

	vr := &sheets.ValueRange{Values: [][]interface{}{reservationRowValues(r)}}
	rangeName := fmt.Sprintf("%s!A%d", s.sheetName, row)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rangeName, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row %d: %w", row, err)
	}
	return nil
}

// MarkCancelled overwrites the cached row with a cancellation note.
func (s *SheetsService) MarkCancelled(ctx context.Context, reservationID string) error {
	row, ok := s.getCachedRow(reservationID)
	if !ok {
		return nil
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{{reservationID, "", "", "", "", "", "cancelled"}}}
	rangeName := fmt.Sprintf("%s!A%d", s.sheetName, row)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rangeName, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("strike out row %d: %w", row, err)
	}
	s.deleteCachedRow(reservationID)
	return nil
}

func (s *SheetsService) writeHeader(ctx context.Context) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{headerRow}}
	rangeName := fmt.Sprintf("%s!A1", s.sheetName)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rangeName, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCachedRow(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache drops the row cache, forcing future appends to allocate
// fresh rows.
func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[string]int)
}

func reservationRowValues(r *model.Reservation) []interface{} {
	return []interface{}{
		r.ID,
		r.ShopID,
		r.UserID,
		r.DateKey(),
		fmt.Sprintf("%02d:%02d", r.Time.Start/60, r.Time.Start%60),
		fmt.Sprintf("%02d:%02d", r.Time.End/60, r.Time.End%60),
		r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
