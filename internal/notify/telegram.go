// Package notify pushes booking events to a staff Telegram chat.
package notify

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"reservd/internal/events"
	"reservd/internal/model"
)

// TelegramNotifier forwards reservation events to a single chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zerolog.Logger
}

// NewTelegramNotifier authenticates the bot against the Telegram API.
func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier ready")
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}, nil
}

// Attach subscribes the notifier to reservation lifecycle events.
func (n *TelegramNotifier) Attach(bus *events.EventBus) {
	bus.Subscribe(events.ReservationCreated, n.onReservation("New reservation"))
	bus.Subscribe(events.ReservationCancelled, n.onReservation("Reservation cancelled"))
	bus.Subscribe(events.ShopDeleted, n.onShopDeleted)
}

func (n *TelegramNotifier) onReservation(title string) events.EventHandler {
	return func(event events.Event) error {
		var r model.Reservation
		if err := json.Unmarshal(event.Payload, &r); err != nil {
			n.logger.Error().Err(err).Str("event", event.Type).Msg("decode reservation event")
			return err
		}
		text := fmt.Sprintf("%s\nShop: %s\nUser: %s\nDate: %s\nTime: %s",
			title, r.ShopID, r.UserID, r.DateKey(), r.Time.String())
		return n.SendText(text)
	}
}

func (n *TelegramNotifier) onShopDeleted(event events.Event) error {
	var payload struct {
		ShopID              string `json:"shop_id"`
		ReservationsRemoved int64  `json:"reservations_removed"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Error().Err(err).Msg("decode shop event")
		return err
	}
	return n.SendText(fmt.Sprintf("Shop %s deleted, %d reservations removed", payload.ShopID, payload.ReservationsRemoved))
}

func (n *TelegramNotifier) SendText(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Msg("telegram send failed")
		return err
	}
	return nil
}
