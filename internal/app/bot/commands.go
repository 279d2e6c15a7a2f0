// Package bot answers the handful of chat commands the service supports.
package bot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/telegram/update"
)

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Handler struct {
	sender    Sender
	webAppURL string
	log       *zap.Logger
}

func NewHandler(sender Sender, webAppURL string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{sender: sender, webAppURL: webAppURL, log: log}
}

const helpText = "Commands:\n/start - welcome message\n/app - open the app\n/help - this list"

func (h *Handler) HandleUpdate(ctx context.Context, u update.Update) error {
	var up tgbotapi.Update
	if err := json.Unmarshal(u.Raw, &up); err != nil {
		return errors.Wrap(err, "decode update")
	}

	msg := up.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return nil
	}

	h.log.Debug("bot command", zap.String("command", msg.Command()), zap.Int64("chat_id", msg.Chat.ID))

	var text string
	switch msg.Command() {
	case "start":
		name := ""
		if msg.From != nil {
			name = msg.From.FirstName
		}
		text = h.greeting(name)
	case "help":
		text = helpText
	case "app":
		text = h.appLink()
	default:
		text = "Unknown command. Try /help"
	}

	if err := h.sender.SendMessage(ctx, msg.Chat.ID, text); err != nil {
		return errors.Wrapf(err, "reply to /%v", msg.Command())
	}
	return nil
}

func (h *Handler) greeting(name string) string {
	hello := "Hi!"
	if name != "" {
		hello = fmt.Sprintf("Hi, %v!", name)
	}
	return hello + " " + h.appLink()
}

func (h *Handler) appLink() string {
	if h.webAppURL == "" {
		return "The app is not available yet."
	}
	return "Open the app: " + h.webAppURL
}
