package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"reservd/internal/model"
	"reservd/internal/schedule"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DB wraps the SQLite handle with shop and reservation storage.
type DB struct {
	*sql.DB
}

// NewDB opens the SQLite database and ensures the schema exists.
func NewDB(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{DB: sqlDB}
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}

func (db *DB) initSchema() error {
	// Reservations reference shops without ON DELETE CASCADE: removing a
	// shop is an explicit two-step workflow (reservations first, then
	// the shop) so partial failures stay visible and retryable.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS shops (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			address    TEXT NOT NULL,
			tel        TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS operation_windows (
			shop_id      TEXT NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
			weekday      INTEGER NOT NULL,
			start_minute INTEGER NOT NULL,
			end_minute   INTEGER NOT NULL,
			capacity     INTEGER NOT NULL,
			PRIMARY KEY (shop_id, weekday)
		);

		CREATE TABLE IF NOT EXISTS reservations (
			id           TEXT PRIMARY KEY,
			shop_id      TEXT NOT NULL REFERENCES shops(id),
			user_id      TEXT NOT NULL,
			date         TEXT NOT NULL,
			start_minute INTEGER NOT NULL,
			end_minute   INTEGER NOT NULL,
			created_at   TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reservations_shop_date ON reservations(shop_id, date);
		CREATE INDEX IF NOT EXISTS idx_reservations_user_shop ON reservations(user_id, shop_id);
	`)
	return err
}

// CreateShop inserts a shop together with its seven operation windows.
func (db *DB) CreateShop(ctx context.Context, shop *model.Shop) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO shops (id, name, address, tel, created_at) VALUES (?, ?, ?, ?, ?)",
		shop.ID, shop.Name, shop.Address, shop.Tel, shop.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert shop: %w", err)
	}

	for _, w := range shop.Operation {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO operation_windows (shop_id, weekday, start_minute, end_minute, capacity) VALUES (?, ?, ?, ?, ?)",
			shop.ID, w.Weekday, w.Start, w.End, w.Capacity,
		); err != nil {
			return fmt.Errorf("insert window %d: %w", w.Weekday, err)
		}
	}
	return tx.Commit()
}

// GetShop loads a shop with its weekly schedule, ordered by weekday.
func (db *DB) GetShop(ctx context.Context, id string) (*model.Shop, error) {
	var shop model.Shop
	err := db.QueryRowContext(ctx,
		"SELECT id, name, address, tel, created_at FROM shops WHERE id = ?", id,
	).Scan(&shop.ID, &shop.Name, &shop.Address, &shop.Tel, &shop.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT weekday, start_minute, end_minute, capacity FROM operation_windows WHERE shop_id = ? ORDER BY weekday", id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var w model.OperationWindow
		if err := rows.Scan(&w.Weekday, &w.Start, &w.End, &w.Capacity); err != nil {
			return nil, err
		}
		shop.Operation = append(shop.Operation, w)
	}
	return &shop, rows.Err()
}

// DeleteShop removes the shop record and its operation windows.
// Fails while reservations still reference the shop.
func (db *DB) DeleteShop(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM shops WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindReservations returns all reservations for (shop, date), exact
// date match.
func (db *DB) FindReservations(ctx context.Context, shopID string, date time.Time) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, shop_id, user_id, date, start_minute, end_minute, created_at
		FROM reservations
		WHERE shop_id = ? AND date = ?
		ORDER BY start_minute`,
		shopID, date.Format(model.DateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// CountReservations counts a user's reservations at a shop across all
// dates, for the booking-limit check.
func (db *DB) CountReservations(ctx context.Context, userID, shopID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations WHERE user_id = ? AND shop_id = ?",
		userID, shopID,
	).Scan(&count)
	return count, err
}

// InsertReservation persists an accepted reservation. A busy database
// (competing writer) surfaces as ErrConcurrencyConflict so the booking
// workflow re-validates against fresh state.
func (db *DB) InsertReservation(ctx context.Context, r *model.Reservation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reservations (id, shop_id, user_id, date, start_minute, end_minute, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ShopID, r.UserID, r.DateKey(), r.Time.Start, r.Time.End, r.CreatedAt,
	)
	if isBusy(err) {
		return schedule.ErrConcurrencyConflict
	}
	return err
}

// GetReservation loads a single reservation by ID.
func (db *DB) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, shop_id, user_id, date, start_minute, end_minute, created_at
		FROM reservations WHERE id = ?`, id,
	)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteReservation removes a reservation by ID.
func (db *DB) DeleteReservation(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM reservations WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReservationsByShop removes every reservation at a shop and
// returns how many were deleted. First step of the shop-removal
// workflow.
func (db *DB) DeleteReservationsByShop(ctx context.Context, shopID string) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM reservations WHERE shop_id = ?", shopID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListReservationsByUser returns a user's reservations, newest first.
func (db *DB) ListReservationsByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, shop_id, user_id, date, start_minute, end_minute, created_at
		FROM reservations WHERE user_id = ?
		ORDER BY date DESC, start_minute`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ListReservations returns all reservations, newest first (admin view).
func (db *DB) ListReservations(ctx context.Context) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, shop_id, user_id, date, start_minute, end_minute, created_at
		FROM reservations
		ORDER BY date DESC, start_minute`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	var date string
	if err := row.Scan(&r.ID, &r.ShopID, &r.UserID, &date, &r.Time.Start, &r.Time.End, &r.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse reservation date %q: %w", date, err)
	}
	r.Date = parsed
	return &r, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	var reservations []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
