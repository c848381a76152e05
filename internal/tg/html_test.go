package tg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTML(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		entities []MessageEntity
		want     string
	}{
		{"plain is escaped", "a < b & c", nil, "a &lt; b &amp; c"},
		{"bold", "Hello world", []MessageEntity{{Type: "bold", Offset: 6, Length: 5}}, "Hello <b>world</b>"},
		{
			"nested",
			"abc",
			[]MessageEntity{{Type: "italic", Offset: 1, Length: 1}, {Type: "bold", Offset: 0, Length: 3}},
			"<b>a<i>b</i>c</b>",
		},
		{
			"utf16 offsets",
			"🎬 Kino",
			[]MessageEntity{{Type: "bold", Offset: 3, Length: 4}},
			"🎬 <b>Kino</b>",
		},
		{
			"link",
			"site",
			[]MessageEntity{{Type: "text_link", Offset: 0, Length: 4, URL: "https://t.me/x?a=1&b=2"}},
			`<a href="https://t.me/x?a=1&amp;b=2">site</a>`,
		},
		{
			"unknown and out of range",
			"abc",
			[]MessageEntity{{Type: "mention", Offset: 0, Length: 3}, {Type: "bold", Offset: 2, Length: 9}},
			"abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTML(tt.text, tt.entities))
		})
	}
}
