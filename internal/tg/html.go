package tg

import (
	"html"
	"sort"
	"strings"
	"unicode/utf16"
)

var entityTags = map[string][2]string{
	"bold":          {"<b>", "</b>"},
	"italic":        {"<i>", "</i>"},
	"underline":     {"<u>", "</u>"},
	"strikethrough": {"<s>", "</s>"},
	"spoiler":       {"<tg-spoiler>", "</tg-spoiler>"},
	"code":          {"<code>", "</code>"},
	"pre":           {"<pre>", "</pre>"},
	"blockquote":    {"<blockquote>", "</blockquote>"},
}

func tagsFor(e MessageEntity) (string, string, bool) {
	if e.Type == "text_link" {
		return `<a href="` + html.EscapeString(e.URL) + `">`, "</a>", true
	}
	t, ok := entityTags[e.Type]
	return t[0], t[1], ok
}

// HTML renders text with Telegram entities as the HTML parse mode expects.
// Offsets are in UTF-16 code units. Unknown entity types are kept as plain
// text.
func HTML(text string, entities []MessageEntity) string {
	if len(entities) == 0 {
		return html.EscapeString(text)
	}
	units := utf16.Encode([]rune(text))

	type mark struct {
		pos   int
		open  bool
		order int
		tag   string
	}
	valid := make([]MessageEntity, 0, len(entities))
	for _, e := range entities {
		if e.Length > 0 && e.Offset >= 0 && e.Offset+e.Length <= len(units) {
			valid = append(valid, e)
		}
	}
	// Outer entities open first.
	sort.SliceStable(valid, func(a, b int) bool {
		if valid[a].Offset != valid[b].Offset {
			return valid[a].Offset < valid[b].Offset
		}
		return valid[a].Length > valid[b].Length
	})
	var marks []mark
	for i, e := range valid {
		open, closeTag, ok := tagsFor(e)
		if !ok {
			continue
		}
		marks = append(marks,
			mark{pos: e.Offset, open: true, order: i, tag: open},
			mark{pos: e.Offset + e.Length, open: false, order: i, tag: closeTag})
	}
	// At one position closings go first, innermost first.
	sort.SliceStable(marks, func(a, b int) bool {
		ma, mb := marks[a], marks[b]
		if ma.pos != mb.pos {
			return ma.pos < mb.pos
		}
		if ma.open != mb.open {
			return !ma.open
		}
		if ma.open {
			return ma.order < mb.order
		}
		return ma.order > mb.order
	})

	var b strings.Builder
	prev := 0
	for _, m := range marks {
		b.WriteString(html.EscapeString(string(utf16.Decode(units[prev:m.pos]))))
		b.WriteString(m.tag)
		prev = m.pos
	}
	b.WriteString(html.EscapeString(string(utf16.Decode(units[prev:]))))
	return b.String()
}
