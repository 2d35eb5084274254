// Package notify pushes portal activity to outside channels: admin
// notifications to Telegram manager chats and the appointment table to
// Google Sheets.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/models"
)

// TelegramSender is the part of the bot API the forwarder uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewTelegramSender connects to the Bot API.
func NewTelegramSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// TelegramForwarder copies admin notifications to manager chats and
// delivers audit reports.
type TelegramForwarder struct {
	sender  TelegramSender
	chatIDs []int64
	queue   chan models.Notification
	logger  zerolog.Logger
}

func NewTelegramForwarder(sender TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramForwarder {
	return &TelegramForwarder{
		sender:  sender,
		chatIDs: append([]int64(nil), chatIDs...),
		queue:   make(chan models.Notification, 64),
		logger:  logger.With().Str("component", "telegram").Logger(),
	}
}

// Attach subscribes the forwarder to admin notifications on the bus.
// Notifications are queued; Run delivers them.
func (f *TelegramForwarder) Attach(bus *events.EventBus) {
	bus.Subscribe(domain.KindPushAdminNotification, f.enqueue)
}

func (f *TelegramForwarder) enqueue(ev events.Event) error {
	var in domain.PushAdminNotification
	if err := ev.Decode(&in); err != nil {
		return fmt.Errorf("decode admin notification: %w", err)
	}
	select {
	case f.queue <- in.Notification:
	default:
		f.logger.Warn().Str("notification_id", in.Notification.ID).Msg("telegram queue full, notification dropped")
	}
	return nil
}

// Run forwards queued notifications until ctx is done.
func (f *TelegramForwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-f.queue:
			sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_ = f.Forward(sendCtx, n)
			cancel()
		}
	}
}

// Forward sends one notification to every manager chat. Delivery to the
// remaining chats continues when one fails.
func (f *TelegramForwarder) Forward(ctx context.Context, n models.Notification) error {
	text := formatNotification(n)
	var errs []error
	for _, chatID := range f.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := f.sender.Send(msg); err != nil {
			f.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("forward admin notification")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
	}
	return errors.Join(errs...)
}

// SendDocument delivers a report file to every manager chat.
func (f *TelegramForwarder) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	var errs []error
	for _, chatID := range f.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: body})
		doc.Caption = caption
		if _, err := f.sender.Send(doc); err != nil {
			f.logger.Warn().Err(err).Int64("chat_id", chatID).Str("file", filename).Msg("send document")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

var typeMarks = map[models.NotificationType]string{
	models.NotificationInfo:    "ℹ️",
	models.NotificationSuccess: "✅",
	models.NotificationAlert:   "⚠️",
}

func formatNotification(n models.Notification) string {
	mark, ok := typeMarks[n.Type]
	if !ok {
		mark = typeMarks[models.NotificationInfo]
	}
	return fmt.Sprintf("%s %s\n%s", mark, n.Message, n.Timestamp.Format("02.01.2006 15:04"))
}
