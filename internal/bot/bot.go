// Package bot turns Telegram updates into catalog lookups, player screens
// and admin wizard steps.
package bot

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/discovery"
	"kinokod-bot/internal/genre"
	"kinokod-bot/internal/kv"
	"kinokod-bot/internal/logger"
	"kinokod-bot/internal/tg"
	"kinokod-bot/internal/views"
	"kinokod-bot/internal/wizard"
)

// Sender is the part of the Bot API the bot calls. *tg.Client implements it.
type Sender interface {
	SendMessage(ctx context.Context, req tg.SendMessageRequest) error
	SendVideo(ctx context.Context, req tg.SendVideoRequest) error
	EditMessageText(ctx context.Context, req tg.EditMessageTextRequest) error
	EditMessageMedia(ctx context.Context, req tg.EditMessageMediaRequest) error
	EditMessageReplyMarkup(ctx context.Context, req tg.EditMessageReplyMarkupRequest) error
	AnswerCallbackQuery(ctx context.Context, req tg.AnswerCallbackQueryRequest) error
	AnswerInlineQuery(ctx context.Context, req tg.AnswerInlineQueryRequest) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Deps are the components the bot is built from.
type Deps struct {
	Store   catalog.Store
	Engine  *discovery.Engine
	Views   *views.Tracker
	Wizard  *wizard.Machine
	State   kv.Store
	IsAdmin func(userID int64) bool
	Lang    genre.Lang
	Log     *logrus.Entry
}

type Bot struct {
	api     Sender
	store   catalog.Store
	engine  *discovery.Engine
	views   *views.Tracker
	wizard  *wizard.Machine
	state   kv.Store
	isAdmin func(int64) bool
	lang    genre.Lang
	log     *logrus.Entry
}

func New(api Sender, d Deps) *Bot {
	b := &Bot{
		api:     api,
		store:   d.Store,
		engine:  d.Engine,
		views:   d.Views,
		wizard:  d.Wizard,
		state:   d.State,
		isAdmin: d.IsAdmin,
		lang:    d.Lang,
		log:     d.Log,
	}
	if b.isAdmin == nil {
		b.isAdmin = func(int64) bool { return false }
	}
	if b.lang == "" {
		b.lang = genre.LangUz
	}
	if b.log == nil {
		b.log = logger.WithModule("bot")
	}
	return b
}

type logKey struct{}

func (b *Bot) logger(ctx context.Context) *logrus.Entry {
	if l, ok := ctx.Value(logKey{}).(*logrus.Entry); ok {
		return l
	}
	return b.log
}

// HandleUpdate processes one update. The returned error is already logged.
func (b *Bot) HandleUpdate(ctx context.Context, upd tg.Update) error {
	log := b.log.WithFields(logrus.Fields{"request_id": uuid.NewString(), "update_id": upd.UpdateID})
	ctx = context.WithValue(ctx, logKey{}, log)

	var err error
	switch {
	case upd.Message != nil:
		if upd.Message.From != nil {
			log = log.WithField("user_id", upd.Message.From.ID)
			ctx = context.WithValue(ctx, logKey{}, log)
		}
		err = b.onMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		log = log.WithField("user_id", upd.CallbackQuery.From.ID)
		ctx = context.WithValue(ctx, logKey{}, log)
		err = b.onCallback(ctx, upd.CallbackQuery)
	case upd.InlineQuery != nil:
		log = log.WithField("user_id", upd.InlineQuery.From.ID)
		ctx = context.WithValue(ctx, logKey{}, log)
		err = b.onInlineQuery(ctx, upd.InlineQuery)
	default:
		return nil
	}
	if err != nil {
		log.WithError(err).Error("update failed")
	}
	return err
}

// reply is how a callback query is answered.
type reply struct {
	text  string
	alert bool
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup tg.ReplyMarkup) error {
	return b.api.SendMessage(ctx, tg.SendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML", ReplyMarkup: markup})
}
