package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reservd/internal/model"
)

// ReservationLister provides the reservations to remind about.
type ReservationLister interface {
	ListReservations(ctx context.Context) ([]model.Reservation, error)
}

// Sender delivers one reminder message.
type Sender interface {
	SendText(text string) error
}

// ReminderConfig controls when the daily reminder run fires.
type ReminderConfig struct {
	DailyHour     int
	DailyMinute   int
	Timezone      string
	CheckInterval time.Duration
}

// ReminderScheduler sends one reminder per reservation happening the
// next day. A single daily run keeps delivery idempotent: the run date
// is recorded and never repeated.
type ReminderScheduler struct {
	config   ReminderConfig
	store    ReservationLister
	sender   Sender
	location *time.Location
	logger   *zerolog.Logger

	mu          sync.Mutex
	lastRunDate string
}

// NewReminderScheduler validates the timezone and builds the scheduler.
func NewReminderScheduler(cfg ReminderConfig, store ReservationLister, sender Sender, logger *zerolog.Logger) (*ReminderScheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	return &ReminderScheduler{
		config:   cfg,
		store:    store,
		sender:   sender,
		location: loc,
		logger:   logger,
	}, nil
}

// Start runs the scheduler loop until the context is cancelled.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.logger.Info().
		Str("timezone", s.config.Timezone).
		Str("daily_time", fmt.Sprintf("%02d:%02d", s.config.DailyHour, s.config.DailyMinute)).
		Msg("reminder scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.checkAndRun(ctx, time.Now())
		}
	}
}

func (s *ReminderScheduler) checkAndRun(ctx context.Context, now time.Time) {
	now = now.In(s.location)
	today := now.Format(model.DateLayout)

	s.mu.Lock()
	alreadyRan := s.lastRunDate == today
	s.mu.Unlock()

	if alreadyRan || !s.isDue(now) {
		return
	}

	s.mu.Lock()
	s.lastRunDate = today
	s.mu.Unlock()

	s.RunNow(ctx, now)
}

// isDue reports whether the daily run should fire at the given local
// time.
func (s *ReminderScheduler) isDue(now time.Time) bool {
	return now.Hour() == s.config.DailyHour && now.Minute() == s.config.DailyMinute
}

// RunNow sends reminders for every reservation scheduled on the day
// after the given time.
func (s *ReminderScheduler) RunNow(ctx context.Context, now time.Time) {
	tomorrow := now.In(s.location).AddDate(0, 0, 1).Format(model.DateLayout)

	reservations, err := s.store.ListReservations(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("fetch reservations for reminders")
		return
	}

	sent, failed := 0, 0
	for i := range reservations {
		select {
		case <-ctx.Done():
			s.logger.Info().Int("sent", sent).Msg("reminder run interrupted")
			return
		default:
		}

		r := &reservations[i]
		if r.DateKey() != tomorrow {
			continue
		}
		text := fmt.Sprintf("Reminder: reservation tomorrow\nShop: %s\nDate: %s\nTime: %s",
			r.ShopID, r.DateKey(), r.Time.String())
		if err := s.sender.SendText(text); err != nil {
			failed++
			continue
		}
		sent++
	}

	s.logger.Info().Str("date", tomorrow).Int("sent", sent).Int("failed", failed).Msg("daily reminders processed")
}
