// Package logger configures the service-wide slog logger per environment
// and optionally fans error records out to a Telegram admin chat.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// SetupLogger builds the root logger. Local runs log human-readable text
// at debug level to stdout; dev and prod log JSON, prod at info level,
// both duplicated into a log file under logDir when it is writable.
func SetupLogger(env string, logDir string) *slog.Logger {
	var out io.Writer = os.Stdout

	if logDir != "" {
		path := filepath.Join(logDir, "bizlink.log")
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
		if err == nil {
			out = io.MultiWriter(os.Stdout, file)
		}
	}

	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// Alerter delivers a plain-text alert out of band (Telegram admin chat).
type Alerter interface {
	SendMessage(msg string)
}

// SetupTelegramHandler wraps the logger so records at or above minLevel
// are also forwarded to the alerter.
func SetupTelegramHandler(log *slog.Logger, alerter Alerter, minLevel slog.Level) *slog.Logger {
	return slog.New(&telegramHandler{
		inner:    log.Handler(),
		alerter:  alerter,
		minLevel: minLevel,
	})
}

type telegramHandler struct {
	inner    slog.Handler
	alerter  Alerter
	minLevel slog.Level
}

func (h *telegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *telegramHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= h.minLevel && h.alerter != nil {
		text := record.Level.String() + ": " + record.Message
		record.Attrs(func(a slog.Attr) bool {
			text += "\n" + a.Key + ": " + a.Value.String()
			return true
		})
		go h.alerter.SendMessage(text)
	}
	return h.inner.Handle(ctx, record)
}

func (h *telegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &telegramHandler{
		inner:    h.inner.WithAttrs(attrs),
		alerter:  h.alerter,
		minLevel: h.minLevel,
	}
}

func (h *telegramHandler) WithGroup(name string) slog.Handler {
	return &telegramHandler{
		inner:    h.inner.WithGroup(name),
		alerter:  h.alerter,
		minLevel: h.minLevel,
	}
}
