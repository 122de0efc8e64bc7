// Package telegram is the messaging-bot front end. A chat is tied to a user
// account by /email; free text then goes to the assistant as that user.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/sabores-reservas/internal/assistant"
	"github.com/example/sabores-reservas/internal/auth"
	"github.com/example/sabores-reservas/internal/reservations"
)

type Users interface {
	ByTelegramID(ctx context.Context, telegramID int64) (auth.User, error)
	BindTelegram(ctx context.Context, telegramID int64, email string) (auth.User, bool, error)
}

type Reservations interface {
	Upcoming(ctx context.Context, userID int64) ([]reservations.Reservation, error)
	Cancel(ctx context.Context, id int64, actor reservations.Actor) (reservations.Reservation, error)
}

type Assistant interface {
	HandleUtterance(ctx context.Context, userID int64, text string) string
}

// Sender is the part of *tgbotapi.BotAPI the bot writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api          Sender
	users        Users
	reservations Reservations
	assistant    Assistant
	restaurant   string
	timeout      time.Duration
	log          *slog.Logger
}

func New(api Sender, u Users, r Reservations, a Assistant, restaurant string, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	return &Bot{api: api, users: u, reservations: r, assistant: a, restaurant: restaurant, timeout: 90 * time.Second, log: log}
}

var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Iniciar el bot"},
	{Command: "email", Description: "Vincular tu cuenta: /email tu@correo.com"},
	{Command: "reservas", Description: "Ver mis reservas"},
	{Command: "cancelar", Description: "Cancelar una reserva: /cancelar <número>"},
}

const (
	msgNeedEmail   = "Primero vincula tu cuenta con /email tu@correo.com"
	msgBadEmail    = "Ese correo no parece válido. Usa /email tu@correo.com"
	msgNoBookings  = "No tienes reservas activas."
	msgCancelUsage = "Indica el número de reserva: /cancelar 12"
	msgNotFound    = "Reserva no encontrada."
	msgRetry       = "Hubo un problema. Por favor, inténtalo de nuevo."
	msgUnknownCmd  = "No conozco ese comando. Prueba /start."
)

// Reply computes the answer to one incoming message.
func (b *Bot) Reply(ctx context.Context, m *tgbotapi.Message) string {
	if m == nil || m.From == nil {
		return ""
	}
	tgID := m.From.ID
	log := b.log.With("telegram_id", tgID)

	if m.IsCommand() {
		args := strings.TrimSpace(m.CommandArguments())
		switch m.Command() {
		case "start":
			return fmt.Sprintf("¡Bienvenido a %s! Escríbeme para reservar, por ejemplo: \"mesa para 2 mañana a las 19:00\".\n"+
				"Vincula tu cuenta con /email tu@correo.com. Usa /reservas para ver tus reservas y /cancelar <número> para cancelar.", b.restaurant)
		case "email":
			return b.bind(ctx, log, tgID, args)
		case "reservas":
			return b.list(ctx, log, tgID)
		case "cancelar":
			return b.cancel(ctx, log, tgID, args)
		}
		return msgUnknownCmd
	}

	u, ok, reply := b.resolve(ctx, log, tgID)
	if !ok {
		return reply
	}
	text := assistant.Sanitize(m.Text)
	if text == "" {
		return "¿En qué puedo ayudarte?"
	}
	return b.assistant.HandleUtterance(ctx, u.ID, text)
}

func (b *Bot) resolve(ctx context.Context, log *slog.Logger, tgID int64) (auth.User, bool, string) {
	u, err := b.users.ByTelegramID(ctx, tgID)
	if errors.Is(err, auth.ErrNotFound) {
		return auth.User{}, false, msgNeedEmail
	}
	if err != nil {
		log.Error("Telegram:Resolve:Failed", "error", err)
		return auth.User{}, false, msgRetry
	}
	return u, true, ""
}

func (b *Bot) bind(ctx context.Context, log *slog.Logger, tgID int64, arg string) string {
	addr, err := mail.ParseAddress(arg)
	if arg == "" || err != nil {
		return msgBadEmail
	}
	u, created, err := b.users.BindTelegram(ctx, tgID, addr.Address)
	if err != nil {
		log.Error("Telegram:Bind:Failed", "error", err)
		return msgRetry
	}
	log.Info("Telegram:Bind:Bound", "user_id", u.ID, "created", created)
	if created {
		return fmt.Sprintf("Cuenta creada y vinculada a %s. Ya puedes reservar.", u.Email)
	}
	return fmt.Sprintf("Cuenta %s vinculada. Ya puedes reservar.", u.Email)
}

func (b *Bot) list(ctx context.Context, log *slog.Logger, tgID int64) string {
	u, ok, reply := b.resolve(ctx, log, tgID)
	if !ok {
		return reply
	}
	rs, err := b.reservations.Upcoming(ctx, u.ID)
	if err != nil {
		log.Error("Telegram:List:Failed", "user_id", u.ID, "error", err)
		return msgRetry
	}
	if len(rs) == 0 {
		return msgNoBookings
	}
	var sb strings.Builder
	sb.WriteString("Tus reservas:\n")
	for _, r := range rs {
		fmt.Fprintf(&sb, "#%d: %s a las %s - Mesa %d para %d personas\n",
			r.ID, r.Date.Format(time.DateOnly), r.Time, r.TableNumber, r.PartySize)
	}
	return sb.String()
}

func (b *Bot) cancel(ctx context.Context, log *slog.Logger, tgID int64, arg string) string {
	u, ok, reply := b.resolve(ctx, log, tgID)
	if !ok {
		return reply
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return msgCancelUsage
	}
	_, err = b.reservations.Cancel(ctx, id, reservations.Actor{UserID: u.ID})
	if errors.Is(err, reservations.ErrNotFound) {
		return msgNotFound
	}
	if err != nil {
		log.Error("Telegram:Cancel:Failed", "user_id", u.ID, "reservation_id", id, "error", err)
		return msgRetry
	}
	return fmt.Sprintf("Reserva #%d cancelada.", id)
}

func (b *Bot) handle(ctx context.Context, m *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	reply := b.Reply(ctx, m)
	if reply == "" {
		return
	}
	out := tgbotapi.NewMessage(m.Chat.ID, reply)
	out.ReplyToMessageID = m.MessageID
	if _, err := b.api.Send(out); err != nil {
		b.log.Error("Telegram:Send:Failed", "chat_id", m.Chat.ID, "error", err)
	}
}

// Run answers updates until ctx is done or the channel closes. Each message
// is handled on its own goroutine.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if u.Message == nil || u.Message.Chat == nil {
				continue
			}
			m := u.Message
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handle(ctx, m)
			}()
		}
	}
}

// Start connects with token, registers the command list and serves until
// ctx is done.
func Start(ctx context.Context, token string, u Users, r Reservations, a Assistant, restaurant string, log *slog.Logger) error {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if _, err := api.Request(tgbotapi.NewSetMyCommands(Commands...)); err != nil {
		return fmt.Errorf("telegram: set commands: %w", err)
	}
	b := New(api, u, r, a, restaurant, log)
	b.log.Info("Telegram:Start:Polling", "bot", api.Self.UserName)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := api.GetUpdatesChan(cfg)
	defer api.StopReceivingUpdates()
	return b.Run(ctx, updates)
}
