package wizard

import (
	"html"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/genre"
)

// genreButtons is the genre multi-select keyboard: two genres per row with
// the selected ones checked, then done and back.
func (m *Machine) genreButtons(selected []string) [][]Button {
	voc := genre.Vocabulary()
	bs := make([]Button, 0, len(voc))
	for _, g := range voc {
		label := g.Display(m.lang)
		if genre.Contains(selected, g.Name) {
			label = "✅ " + label
		}
		bs = append(bs, Button{Label: label, Action: ActToggle, Item: g.Name})
	}
	out := grid(bs, 2)
	return append(out, row(btn("✔️ Готово", ActDone), btn("⬅️ Назад", ActBack)))
}

func (m *Machine) genreText(selected []string) string {
	return "🎭 Выберите жанры:\n\nВыбрано: " + html.EscapeString(genre.DisplayText(selected, m.lang))
}

// toggleGenre applies a genre button press and reports whether it was one.
func toggleGenre(selected *[]string, ev Event) bool {
	if ev.Kind != EventAction || ev.Action != ActToggle || !genre.Valid(ev.Item) {
		return false
	}
	*selected = genre.Toggle(*selected, ev.Item)
	return true
}

// shapeLabel names a shape for admins.
func shapeLabel(s catalog.Shape) string {
	switch s {
	case catalog.Standalone:
		return "🎬 Фильм"
	case catalog.Seasoned:
		return "📺 Сериал"
	case catalog.Flat:
		return "🎞 Мини-сериал"
	}
	return "-"
}
