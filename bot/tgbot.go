// Package bot delivers admin alerts to Telegram. The bot is send-only:
// it never polls for updates, error-level log records are pushed to the
// admin chat by the logging handler.
package bot

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"BizLink/internal/lib/sl"
)

type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	botUsername string
	adminId     int64
}

func NewTgBot(botName, apiKey string, adminId int64, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		adminId:     adminId,
		botUsername: botName,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

// SendMessage pushes an alert to the admin chat.
func (t *TgBot) SendMessage(msg string) {
	if msg == "" {
		return
	}

	_, err := t.api.SendMessage(t.adminId, msg, &tgbotapi.SendMessageOpts{})
	if err != nil {
		t.log.With(
			slog.Int64("id", t.adminId),
		).Warn("sending alert message", sl.Err(err))
	}
}
