package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/discovery"
	"kinokod-bot/internal/genre"
	"kinokod-bot/internal/tg"
)

var randomButtons = map[string]catalog.Shape{
	btnRandomFilm:   catalog.Standalone,
	btnRandomSeries: catalog.Seasoned,
	btnRandomFlat:   catalog.Flat,
}

func (b *Bot) onMessage(ctx context.Context, msg *tg.Message) error {
	if msg.From == nil {
		return nil
	}
	if b.isAdmin(msg.From.ID) {
		handled, err := b.adminMessage(ctx, msg)
		if handled || err != nil {
			return err
		}
	}

	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		return b.send(ctx, chatID, welcomeText(msg.From.Name()), mainMenu())
	case "favorites":
		return b.sendFavorites(ctx, chatID, msg.From.ID)
	case "top":
		return b.send(ctx, chatID, topText(discovery.Total, b.engine.TopMovies(ctx, discovery.Total, 0)), topKeyboard(discovery.Total))
	case "":
	default:
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	if shape, ok := randomButtons[text]; ok {
		return b.sendRandom(ctx, chatID, msg.From.ID, shape)
	}
	switch text {
	case btnTop:
		return b.send(ctx, chatID, topText(discovery.Total, b.engine.TopMovies(ctx, discovery.Total, 0)), topKeyboard(discovery.Total))
	case btnGenres:
		return b.sendGenrePicker(ctx, msg.From.ID, chatID)
	}

	if code, err := strconv.ParseInt(text, 10, 64); err == nil && code > 0 {
		item := b.engine.FindByCode(ctx, code)
		if item == nil {
			return b.send(ctx, chatID, textNoCode, nil)
		}
		return b.play(ctx, chatID, msg.From.ID, item, item.First())
	}

	res := b.engine.SearchByName(ctx, text, 0)
	if res.Empty() {
		return b.send(ctx, chatID, textNotFound, nil)
	}
	return b.send(ctx, chatID, searchText(res, b.lang), nil)
}

// play sends rec as a video with the player keyboard and counts the view.
func (b *Bot) play(ctx context.Context, chatID, userID int64, item *catalog.Item, rec catalog.Record) error {
	saved, err := b.store.Favorites().Has(ctx, userID, item.Code)
	if err != nil {
		b.logger(ctx).WithError(err).Warn("favorite lookup failed")
	}
	err = b.api.SendVideo(ctx, tg.SendVideoRequest{
		ChatID:      chatID,
		Video:       rec.MediaRef,
		Caption:     caption(rec),
		ParseMode:   "HTML",
		ReplyMarkup: playerKeyboard(item, rec.Key, saved),
	})
	if err != nil {
		return err
	}
	b.views.Track(ctx, userID, rec)
	return nil
}

func (b *Bot) sendRandom(ctx context.Context, chatID, userID int64, shape catalog.Shape) error {
	rec := b.engine.Random(ctx, shape)
	if rec == nil {
		return b.send(ctx, chatID, textNoContent, nil)
	}
	item := b.engine.FindByCode(ctx, rec.Code)
	if item == nil {
		return b.send(ctx, chatID, textNoContent, nil)
	}
	return b.play(ctx, chatID, userID, item, *rec)
}

func (b *Bot) favoriteEntries(ctx context.Context, userID int64) ([]favoriteEntry, error) {
	favs, err := b.store.Favorites().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]favoriteEntry, 0, len(favs))
	for _, f := range favs {
		item, err := b.store.Lookup(ctx, f.Code)
		if err != nil {
			return nil, err
		}
		// Bookmarks of deleted codes are skipped.
		if item == nil {
			continue
		}
		out = append(out, favoriteEntry{code: f.Code, shape: item.Shape, title: item.Title()})
	}
	return out, nil
}

func (b *Bot) sendFavorites(ctx context.Context, chatID, userID int64) error {
	list, err := b.favoriteEntries(ctx, userID)
	if err != nil {
		b.logger(ctx).WithError(err).Error("favorites list failed")
		return b.send(ctx, chatID, textFailed, nil)
	}
	return b.send(ctx, chatID, favoritesText(list), nil)
}

const genreSelectionTTL = time.Hour

func genreStateKey(userID int64) string {
	return "usergenres:" + strconv.FormatInt(userID, 10)
}

// genreSelection is the user's current pick in the genre search keyboard.
func (b *Bot) genreSelection(ctx context.Context, userID int64) []string {
	raw, err := b.state.Get(ctx, genreStateKey(userID))
	if err != nil {
		return nil
	}
	return genre.Deserialize(string(raw))
}

func (b *Bot) setGenreSelection(ctx context.Context, userID int64, sel []string) error {
	if len(sel) == 0 {
		return b.state.Delete(ctx, genreStateKey(userID))
	}
	return b.state.Set(ctx, genreStateKey(userID), []byte(genre.Serialize(sel)), genreSelectionTTL)
}

func (b *Bot) sendGenrePicker(ctx context.Context, userID, chatID int64) error {
	if err := b.setGenreSelection(ctx, userID, nil); err != nil {
		b.logger(ctx).WithError(err).Warn("reset genre selection")
	}
	return b.send(ctx, chatID, textChooseGenr, genreKeyboard(nil, b.lang))
}
