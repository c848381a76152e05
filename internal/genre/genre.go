// Package genre holds the fixed genre vocabulary and the codec that moves a
// genre selection between its in-memory form and the single text field it is
// persisted in.
package genre

import (
	"encoding/json"
	"strings"
)

// Lang selects the display language for user-facing labels.
type Lang string

const (
	LangUz Lang = "uz"
	LangRu Lang = "ru"
)

// ParseLang maps a configuration value to a Lang, defaulting to Uzbek.
func ParseLang(s string) Lang {
	if strings.EqualFold(strings.TrimSpace(s), string(LangRu)) {
		return LangRu
	}
	return LangUz
}

// Genre is one entry of the vocabulary. Name is the technical identifier that
// gets stored; labels are only used for display.
type Genre struct {
	Name    string
	Emoji   string
	LabelRu string
	LabelUz string
}

// Label returns the localized label without the emoji.
func (g Genre) Label(lang Lang) string {
	if lang == LangRu {
		return g.LabelRu
	}
	return g.LabelUz
}

// Display returns "emoji label".
func (g Genre) Display(lang Lang) string {
	return g.Emoji + " " + g.Label(lang)
}

var vocabulary = [...]Genre{
	{Name: "Драма", Emoji: "🎭", LabelRu: "Драма", LabelUz: "Drama"},
	{Name: "Комедия", Emoji: "😂", LabelRu: "Комедия", LabelUz: "Komediya"},
	{Name: "Боевик", Emoji: "💥", LabelRu: "Боевик", LabelUz: "Jangari"},
	{Name: "Триллер", Emoji: "😱", LabelRu: "Триллер", LabelUz: "Triller"},
	{Name: "Ужасы", Emoji: "👻", LabelRu: "Ужасы", LabelUz: "Qo'rqinchli"},
	{Name: "Фантастика", Emoji: "🚀", LabelRu: "Фантастика", LabelUz: "Fantastika"},
	{Name: "Фэнтези", Emoji: "🧙", LabelRu: "Фэнтези", LabelUz: "Fentezi"},
	{Name: "Мелодрама", Emoji: "❤️", LabelRu: "Мелодрама", LabelUz: "Melodrama"},
	{Name: "Детектив", Emoji: "🕵️", LabelRu: "Детектив / Криминал", LabelUz: "Detektiv"},
	{Name: "Приключения", Emoji: "🗺️", LabelRu: "Приключения", LabelUz: "Sarguzasht"},
	{Name: "Семейный", Emoji: "👨‍👩‍👧", LabelRu: "Семейный", LabelUz: "Oilaviy"},
	{Name: "Мультфильм", Emoji: "🐭", LabelRu: "Мультфильм", LabelUz: "Multfilm"},
	{Name: "Исторический", Emoji: "🏛️", LabelRu: "Исторический", LabelUz: "Tarixiy"},
	{Name: "Документальный", Emoji: "📚", LabelRu: "Документальный", LabelUz: "Hujjatli"},
	{Name: "Военный", Emoji: "⚔️", LabelRu: "Военный", LabelUz: "Harbiy"},
}

var byName = func() map[string]Genre {
	m := make(map[string]Genre, len(vocabulary))
	for _, g := range vocabulary {
		m[g.Name] = g
	}
	return m
}()

// Vocabulary returns the ordered canonical genre table.
func Vocabulary() []Genre {
	out := make([]Genre, len(vocabulary))
	copy(out, vocabulary[:])
	return out
}

// Lookup finds a genre by its technical name.
func Lookup(name string) (Genre, bool) {
	g, ok := byName[name]
	return g, ok
}

// Valid reports whether name belongs to the vocabulary.
func Valid(name string) bool {
	_, ok := byName[name]
	return ok
}

// Serialize encodes a genre selection as a JSON array. Duplicates are dropped,
// first occurrence wins.
func Serialize(genres []string) string {
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Deserialize decodes a persisted genre field. It never fails: empty or
// malformed input yields an empty selection.
func Deserialize(s string) []string {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	var raw []string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return out
	}
	return append(out, raw...)
}

// Normalize rewrites a persisted field into its canonical serialized form.
func Normalize(s string) string {
	return Serialize(Deserialize(s))
}

// Pattern is the quoted form a genre name takes inside a serialized field.
// Substring matching on it cannot confuse one name with another that contains
// it, e.g. "Драма" and "Мелодрама".
func Pattern(name string) string {
	return `"` + name + `"`
}

// DisplayText renders a selection for users. Names outside the vocabulary are
// shown as-is.
func DisplayText(genres []string, lang Lang) string {
	if len(genres) == 0 {
		if lang == LangRu {
			return "Жанр не выбран"
		}
		return "Janr tanlanmagan"
	}
	parts := make([]string, 0, len(genres))
	for _, name := range genres {
		g, ok := byName[name]
		if !ok {
			parts = append(parts, name)
			continue
		}
		parts = append(parts, g.Display(lang))
	}
	return strings.Join(parts, ", ")
}

// Toggle adds name to the selection or removes it if already present. The
// input slice is not modified.
func Toggle(selected []string, name string) []string {
	out := make([]string, 0, len(selected)+1)
	removed := false
	for _, g := range selected {
		if g == name {
			removed = true
			continue
		}
		out = append(out, g)
	}
	if !removed {
		out = append(out, name)
	}
	return out
}

// Contains reports whether the selection holds name.
func Contains(selected []string, name string) bool {
	for _, g := range selected {
		if g == name {
			return true
		}
	}
	return false
}
