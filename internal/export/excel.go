// Package export renders reservation reports as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"reservd/internal/model"
)

const sheetName = "Reservations"

var reportColumns = []string{"ID", "Shop", "User", "Date", "Start", "End", "Created At"}

// WriteReservations writes an xlsx report with one row per reservation.
func WriteReservations(w io.Writer, reservations []model.Reservation) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)

	if err := writeHeader(f); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range reservations {
		if err := writeRow(f, i+2, &reservations[i]); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f.Write(w)
}

func writeHeader(f *excelize.File) error {
	for i, col := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = f.SetCellStyle(sheetName, startCell, endCell, style)
	}
	return nil
}

func writeRow(f *excelize.File, row int, r *model.Reservation) error {
	values := []interface{}{
		r.ID,
		r.ShopID,
		r.UserID,
		r.DateKey(),
		minutesToClock(r.Time.Start),
		minutesToClock(r.Time.End),
		r.CreatedAt.Format(time.RFC3339),
	}
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, val); err != nil {
			return err
		}
	}
	return nil
}

func minutesToClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
