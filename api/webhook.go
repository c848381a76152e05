// Package handler exposes the bot over HTTP: the Telegram webhook and a
// health probe.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"kinokod-bot/internal/tg"
)

const (
	secretHeader  = "X-Telegram-Bot-Api-Secret-Token"
	maxBody       = 2 << 20
	updateTimeout = 9 * time.Second
)

// Updater processes one Telegram update.
type Updater interface {
	HandleUpdate(ctx context.Context, upd tg.Update) error
}

// Webhook receives updates pushed by Telegram.
type Webhook struct {
	bot    Updater
	secret string
	log    *logrus.Entry
}

// NewWebhook returns a webhook handler. An empty secret disables the header
// check.
func NewWebhook(bot Updater, secret string, log *logrus.Entry) *Webhook {
	return &Webhook{bot: bot, secret: secret, log: log}
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var upd tg.Update
	if err := json.Unmarshal(body, &upd); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), updateTimeout)
	defer cancel()

	// Telegram redelivers on non-2xx, so failures are only logged.
	if err := h.bot.HandleUpdate(ctx, upd); err != nil {
		h.log.WithError(err).WithField("update_id", upd.UpdateID).Debug("update acknowledged after failure")
	}
	w.WriteHeader(http.StatusOK)
}

// Router mounts the webhook and the health probe. ping reports backend
// health.
func Router(hook http.Handler, ping func(ctx context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodPost, "/api/webhook", hook)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
