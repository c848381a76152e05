package bot

import (
	"fmt"
	"html"
	"strings"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/discovery"
	"kinokod-bot/internal/genre"
)

const (
	textWelcome    = "<b>👋 Salom %s</b>\n\n<b>Botimizga xush kelibsiz.</b>\n\n<b>🍿 Kino kodini yuboring:</b>"
	textNoContent  = "😔 Hozircha bu turdagi kontent mavjud emas."
	textNotFound   = "😔 Kechirasiz, bu nomdagi film topilmadi. Boshqa nom yoki kod bilan urinib ko'ring."
	textNoCode     = "😔 Bu kod bo'yicha hech narsa topilmadi."
	textFailed     = "❌ Xatolik yuz berdi"
	textChooseGenr = "🎭 <b>Janrlarni tanlang:</b>"
	textNoGenre    = "⚠️ Kamida bitta janrni tanlang!"
	textNoEpisode  = "❌ Qism topilmadi"
	textSaved      = "💾 Sevimlilarga qo'shildi"
	textUnsaved    = "❌ Sevimlilardan o'chirildi"
	textExpired    = "Сессия истекла, начните заново"
	textNoFavs     = "😔 <b>Siz hali hech nima saqlamagansiz</b>"
	textNoGenreHit = "😔 Tanlangan janrlar bo'yicha hech narsa topilmadi."
)

func shapeName(s catalog.Shape) string {
	switch s {
	case catalog.Standalone:
		return "Film"
	case catalog.Seasoned:
		return "Serial"
	case catalog.Flat:
		return "Mini-serial"
	}
	return "-"
}

func shapeIcon(s catalog.Shape) string {
	switch s {
	case catalog.Seasoned:
		return "📺"
	case catalog.Flat:
		return "🧩"
	}
	return "🎬"
}

func welcomeText(name string) string {
	return fmt.Sprintf(textWelcome, html.EscapeString(name))
}

// caption is the text under a played video.
func caption(rec catalog.Record) string {
	var b strings.Builder
	if rec.Caption != "" {
		b.WriteString(rec.Caption)
	} else {
		fmt.Fprintf(&b, "<b>%s</b>", html.EscapeString(rec.Title))
	}
	if rec.Shape.Episodic() && !strings.Contains(rec.Caption, rec.Key.String()) {
		fmt.Fprintf(&b, "\n\n📌 %s", rec.Key.String())
	}
	return b.String()
}

var topTitles = map[discovery.Interval]string{
	discovery.Day:   "KUNLIK",
	discovery.Week:  "HAFTALIK",
	discovery.Month: "OYLIK",
	discovery.Year:  "YILLIK",
	discovery.Total: "BARCHA VAQTDAGI",
}

func rankedText(header string, list []discovery.Ranked) string {
	var b strings.Builder
	b.WriteString(header)
	for i, r := range list {
		fmt.Fprintf(&b, "\n\n<b>%d</b>. <b>%s</b>", i+1, html.EscapeString(r.Title))
		fmt.Fprintf(&b, "\n├ Turi: %s", shapeName(r.Shape))
		fmt.Fprintf(&b, "\n├ Kod: <code>%d</code>", r.Code)
		fmt.Fprintf(&b, "\n├ Saqlangan: %d", r.Favorites)
		fmt.Fprintf(&b, "\n└ Ko'rilgan: %d", r.Views)
	}
	return b.String()
}

func topText(iv discovery.Interval, list []discovery.Ranked) string {
	header := fmt.Sprintf("🔥 <b>%s TOP %d FILMLAR:</b>", topTitles[iv], discovery.DefaultTopLimit)
	if len(list) == 0 {
		return header + "\n\n" + textNoContent
	}
	return rankedText(header, list)
}

func genreResultText(selected []string, list []discovery.Ranked, lang genre.Lang) string {
	if len(list) == 0 {
		return textNoGenreHit
	}
	header := fmt.Sprintf("🎭 <b>%s</b>", html.EscapeString(genre.DisplayText(selected, lang)))
	return rankedText(header, list) + "\n\n<b>Ko'rish uchun kerakli filmni kodini yuboring.</b>"
}

func searchText(res discovery.Results, lang genre.Lang) string {
	var b strings.Builder
	b.WriteString("🔎 <b>Qidiruv natijalari:</b>")
	section := func(hits []discovery.Hit) {
		for _, h := range hits {
			fmt.Fprintf(&b, "\n\n%s <b>%s</b>", shapeIcon(h.Record.Shape), html.EscapeString(h.Record.Title))
			if len(h.Record.Genres) > 0 {
				fmt.Fprintf(&b, "\n├ Janr: %s", html.EscapeString(genre.DisplayText(h.Record.Genres, lang)))
			}
			fmt.Fprintf(&b, "\n└ Kod: <code>%d</code>", h.Record.Code)
		}
	}
	section(res.Standalone)
	section(res.Seasoned)
	section(res.Flat)
	b.WriteString("\n\n<b>Ko'rish uchun kerakli filmni kodini yuboring.</b>")
	return b.String()
}

// favoriteEntry is a bookmark resolved to its item.
type favoriteEntry struct {
	code  int64
	shape catalog.Shape
	title string
}

func favoritesText(list []favoriteEntry) string {
	if len(list) == 0 {
		return textNoFavs
	}
	var b strings.Builder
	b.WriteString("📬 <b>Sizning filmlar to'plamingiz</b>")
	for i, f := range list {
		fmt.Fprintf(&b, "\n\n<b>%d</b>. %s <b>%s</b>\n└ Kod: <code>%d</code>", i+1, shapeIcon(f.shape), html.EscapeString(f.title), f.code)
	}
	return b.String()
}
