package bot

import (
	"context"
	"strconv"
	"strings"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/discovery"
	"kinokod-bot/internal/genre"
	"kinokod-bot/internal/tg"
)

// onCallback routes button presses. Every query is answered exactly once.
func (b *Bot) onCallback(ctx context.Context, cq *tg.CallbackQuery) error {
	r, err := b.callback(ctx, cq)
	if aerr := b.api.AnswerCallbackQuery(ctx, tg.AnswerCallbackQueryRequest{
		CallbackQueryID: cq.ID,
		Text:            r.text,
		ShowAlert:       r.alert,
	}); aerr != nil && err == nil {
		err = aerr
	}
	return err
}

func (b *Bot) callback(ctx context.Context, cq *tg.CallbackQuery) (reply, error) {
	if cq.Message == nil {
		return reply{}, nil
	}
	verb, arg, _ := strings.Cut(cq.Data, ":")
	switch verb {
	case "noop":
		return reply{}, nil
	case "close":
		return reply{}, b.api.DeleteMessage(ctx, cq.Message.Chat.ID, cq.Message.MessageID)
	case "wz":
		if !b.isAdmin(cq.From.ID) {
			return reply{}, nil
		}
		return b.wizardCallback(ctx, cq, arg)
	case "ep":
		return b.episodeCallback(ctx, cq, arg)
	case "fav":
		return b.favoriteCallback(ctx, cq, arg)
	case "top":
		return b.topCallback(ctx, cq, arg)
	case "gen":
		return b.genreToggle(ctx, cq, arg)
	case "gen!":
		return b.genreSearch(ctx, cq)
	}
	return reply{}, nil
}

// parseTarget reads "code:season:episode".
func parseTarget(arg string) (int64, catalog.EpisodeKey, bool) {
	parts := strings.Split(arg, ":")
	if len(parts) != 3 {
		return 0, catalog.EpisodeKey{}, false
	}
	code, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || code < 1 {
		return 0, catalog.EpisodeKey{}, false
	}
	season, err1 := strconv.Atoi(parts[1])
	episode, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || season < 0 || episode < 0 {
		return 0, catalog.EpisodeKey{}, false
	}
	return code, catalog.EpisodeKey{Season: season, Episode: episode}, true
}

func findRecord(item *catalog.Item, key catalog.EpisodeKey) (catalog.Record, bool) {
	for _, r := range item.Records {
		if r.Key == key {
			return r, true
		}
	}
	return catalog.Record{}, false
}

func (b *Bot) episodeCallback(ctx context.Context, cq *tg.CallbackQuery, arg string) (reply, error) {
	code, key, ok := parseTarget(arg)
	if !ok {
		return reply{text: textNoEpisode, alert: true}, nil
	}
	item := b.engine.FindByCode(ctx, code)
	if item == nil {
		return reply{text: textNoEpisode, alert: true}, nil
	}
	rec, ok := findRecord(item, key)
	if !ok {
		return reply{text: textNoEpisode, alert: true}, nil
	}
	saved, err := b.store.Favorites().Has(ctx, cq.From.ID, code)
	if err != nil {
		b.logger(ctx).WithError(err).Warn("favorite lookup failed")
	}
	err = b.api.EditMessageMedia(ctx, tg.EditMessageMediaRequest{
		ChatID:      cq.Message.Chat.ID,
		MessageID:   cq.Message.MessageID,
		Media:       tg.NewInputMediaVideo(rec.MediaRef, caption(rec)),
		ReplyMarkup: playerKeyboard(item, key, saved),
	})
	if err != nil && !tg.IsNotModified(err) {
		return reply{text: textFailed}, err
	}
	b.views.Track(ctx, cq.From.ID, rec)
	return reply{}, nil
}

func (b *Bot) favoriteCallback(ctx context.Context, cq *tg.CallbackQuery, arg string) (reply, error) {
	code, key, ok := parseTarget(arg)
	if !ok {
		return reply{}, nil
	}
	item := b.engine.FindByCode(ctx, code)
	if item == nil {
		return reply{text: textNoEpisode, alert: true}, nil
	}
	favs := b.store.Favorites()
	saved, err := favs.Has(ctx, cq.From.ID, code)
	if err != nil {
		return reply{text: textFailed}, err
	}
	r := reply{text: textSaved}
	if saved {
		err = favs.Remove(ctx, cq.From.ID, code)
		r.text = textUnsaved
	} else {
		err = favs.Add(ctx, cq.From.ID, code)
	}
	if err != nil {
		return reply{text: textFailed}, err
	}

	err = b.api.EditMessageReplyMarkup(ctx, tg.EditMessageReplyMarkupRequest{
		ChatID:      cq.Message.Chat.ID,
		MessageID:   cq.Message.MessageID,
		ReplyMarkup: playerKeyboard(item, key, !saved),
	})
	if err != nil && !tg.IsNotModified(err) {
		b.logger(ctx).WithError(err).Warn("refresh player keyboard")
	}
	return r, nil
}

func (b *Bot) topCallback(ctx context.Context, cq *tg.CallbackQuery, arg string) (reply, error) {
	iv, err := discovery.ParseInterval(arg)
	if err != nil {
		return reply{}, nil
	}
	err = b.api.EditMessageText(ctx, tg.EditMessageTextRequest{
		ChatID:      cq.Message.Chat.ID,
		MessageID:   cq.Message.MessageID,
		Text:        topText(iv, b.engine.TopMovies(ctx, iv, 0)),
		ParseMode:   "HTML",
		ReplyMarkup: topKeyboard(iv),
	})
	if err != nil && !tg.IsNotModified(err) {
		return reply{text: textFailed}, err
	}
	return reply{}, nil
}

func (b *Bot) genreToggle(ctx context.Context, cq *tg.CallbackQuery, name string) (reply, error) {
	if !genre.Valid(name) {
		return reply{}, nil
	}
	sel := genre.Toggle(b.genreSelection(ctx, cq.From.ID), name)
	if err := b.setGenreSelection(ctx, cq.From.ID, sel); err != nil {
		return reply{text: textFailed}, err
	}
	err := b.api.EditMessageReplyMarkup(ctx, tg.EditMessageReplyMarkupRequest{
		ChatID:      cq.Message.Chat.ID,
		MessageID:   cq.Message.MessageID,
		ReplyMarkup: genreKeyboard(sel, b.lang),
	})
	if err != nil && !tg.IsNotModified(err) {
		return reply{}, err
	}
	return reply{}, nil
}

func (b *Bot) genreSearch(ctx context.Context, cq *tg.CallbackQuery) (reply, error) {
	sel := b.genreSelection(ctx, cq.From.ID)
	if len(sel) == 0 {
		return reply{text: textNoGenre, alert: true}, nil
	}
	list := b.engine.TopByGenres(ctx, sel, discovery.DefaultGenreLimit)
	return reply{}, b.send(ctx, cq.Message.Chat.ID, genreResultText(sel, list, b.lang), nil)
}
