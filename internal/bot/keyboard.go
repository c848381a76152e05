package bot

import (
	"fmt"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/discovery"
	"kinokod-bot/internal/genre"
	"kinokod-bot/internal/tg"
	"kinokod-bot/internal/wizard"
)

// Main menu buttons.
const (
	btnRandomFilm   = "🎬 Tasodifiy Film"
	btnRandomSeries = "📺 Tasodifiy Serial"
	btnRandomFlat   = "🍿 Tasodifiy Epizodli Film"
	btnTop          = "🔝 Top Filmlar"
	btnGenres       = "🎭 Janr bo'yicha Film"
)

func mainMenu() *tg.ReplyKeyboardMarkup {
	return &tg.ReplyKeyboardMarkup{
		Keyboard: [][]tg.KeyboardButton{
			{{Text: btnRandomFilm}, {Text: btnRandomSeries}},
			{{Text: btnRandomFlat}},
			{{Text: btnTop}},
			{{Text: btnGenres}},
		},
		ResizeKeyboard: true,
	}
}

func closeRow() []tg.InlineKeyboardButton {
	return []tg.InlineKeyboardButton{{Text: "❌", CallbackData: "close"}}
}

func episodeData(code int64, k catalog.EpisodeKey) string {
	return fmt.Sprintf("ep:%d:%d:%d", code, k.Season, k.Episode)
}

func favoriteData(code int64, k catalog.EpisodeKey) string {
	return fmt.Sprintf("fav:%d:%d:%d", code, k.Season, k.Episode)
}

func indexOf(recs []catalog.Record, key catalog.EpisodeKey) int {
	for i, r := range recs {
		if r.Key == key {
			return i
		}
	}
	return -1
}

// navRow is the previous / position / next row over recs.
func navRow(code int64, recs []catalog.Record, i int, prev, next string) []tg.InlineKeyboardButton {
	var row []tg.InlineKeyboardButton
	if i > 0 {
		row = append(row, tg.InlineKeyboardButton{Text: prev, CallbackData: episodeData(code, recs[i-1].Key)})
	}
	row = append(row, tg.InlineKeyboardButton{Text: fmt.Sprintf("%d/%d", i+1, len(recs)), CallbackData: "noop"})
	if i < len(recs)-1 {
		row = append(row, tg.InlineKeyboardButton{Text: next, CallbackData: episodeData(code, recs[i+1].Key)})
	}
	return row
}

// playerKeyboard is shown under a video: episode and season navigation for
// episodic items, the favorite toggle and close.
func playerKeyboard(item *catalog.Item, key catalog.EpisodeKey, saved bool) *tg.InlineKeyboardMarkup {
	var rows [][]tg.InlineKeyboardButton
	switch item.Shape {
	case catalog.Flat:
		if i := indexOf(item.Records, key); i >= 0 && len(item.Records) > 1 {
			rows = append(rows, navRow(item.Code, item.Records, i, "⏮️ Orqaga", "Keyingi seria ⏭️"))
		}
	case catalog.Seasoned:
		season := catalog.InSeason(item.Records, key.Season)
		if i := indexOf(season, key); i >= 0 {
			rows = append(rows, navRow(item.Code, season, i, "⬅️ Oldingi seria", "Keyingi seria ➡️"))
		}
		if len(item.Records) > 1 {
			rows = append(rows, []tg.InlineKeyboardButton{{
				Text:         fmt.Sprintf("%d/%d", indexOf(item.Records, key)+1, len(item.Records)),
				CallbackData: "noop",
			}})
		}
		seasons := catalog.Seasons(item.Records)
		if len(seasons) > 1 {
			pos := 0
			for i, s := range seasons {
				if s == key.Season {
					pos = i
				}
			}
			var row []tg.InlineKeyboardButton
			if pos > 0 {
				first := catalog.InSeason(item.Records, seasons[pos-1])[0]
				row = append(row, tg.InlineKeyboardButton{Text: "⬅️ Oldingi fasl", CallbackData: episodeData(item.Code, first.Key)})
			}
			row = append(row, tg.InlineKeyboardButton{Text: fmt.Sprintf("%d-fasl", key.Season), CallbackData: "noop"})
			if pos < len(seasons)-1 {
				first := catalog.InSeason(item.Records, seasons[pos+1])[0]
				row = append(row, tg.InlineKeyboardButton{Text: "Keyingi fasl ➡️", CallbackData: episodeData(item.Code, first.Key)})
			}
			rows = append(rows, row)
		}
	}

	fav := tg.InlineKeyboardButton{Text: "💾 Saqlash", CallbackData: favoriteData(item.Code, key)}
	if saved {
		fav.Text = "🗑 O'chirish"
	}
	rows = append(rows, []tg.InlineKeyboardButton{fav}, closeRow())
	return tg.NewInlineKeyboardMarkup(rows)
}

var intervalLabels = map[discovery.Interval]string{
	discovery.Day:   "Kun",
	discovery.Week:  "Hafta",
	discovery.Month: "Oy",
	discovery.Year:  "Yil",
	discovery.Total: "Barchasi",
}

func topKeyboard(current discovery.Interval) *tg.InlineKeyboardMarkup {
	row := make([]tg.InlineKeyboardButton, 0, len(discovery.Intervals))
	for _, iv := range discovery.Intervals {
		label := intervalLabels[iv]
		if iv == current {
			label = "• " + label
		}
		row = append(row, tg.InlineKeyboardButton{Text: label, CallbackData: "top:" + string(iv)})
	}
	return tg.NewInlineKeyboardMarkup([][]tg.InlineKeyboardButton{row, closeRow()})
}

func genreKeyboard(selected []string, lang genre.Lang) *tg.InlineKeyboardMarkup {
	voc := genre.Vocabulary()
	rows := make([][]tg.InlineKeyboardButton, 0, len(voc)/2+2)
	var row []tg.InlineKeyboardButton
	for _, g := range voc {
		label := g.Display(lang)
		if genre.Contains(selected, g.Name) {
			label = "✅ " + label
		}
		row = append(row, tg.InlineKeyboardButton{Text: label, CallbackData: "gen:" + g.Name})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []tg.InlineKeyboardButton{{Text: "🔍 Qidirish", CallbackData: "gen!"}}, closeRow())
	return tg.NewInlineKeyboardMarkup(rows)
}

// wizardKeyboard encodes wizard buttons as "wz:action[:item]" callbacks.
func wizardKeyboard(buttons [][]wizard.Button) *tg.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tg.InlineKeyboardButton, 0, len(buttons))
	for _, r := range buttons {
		row := make([]tg.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			data := "wz:" + b.Action
			if b.Item != "" {
				data += ":" + b.Item
			}
			row = append(row, tg.InlineKeyboardButton{Text: b.Label, CallbackData: data})
		}
		rows = append(rows, row)
	}
	return tg.NewInlineKeyboardMarkup(rows)
}
