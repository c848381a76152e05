package genre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabulary(t *testing.T) {
	v := Vocabulary()
	require.Len(t, v, 15)
	assert.Equal(t, "Драма", v[0].Name)
	assert.Equal(t, "Военный", v[14].Name)

	v[0].Name = "changed"
	assert.Equal(t, "Драма", Vocabulary()[0].Name, "vocabulary must not be mutable through the copy")
}

func TestSerialize(t *testing.T) {
	tests := []struct {
		name   string
		genres []string
		want   string
	}{
		{"nil", nil, "[]"},
		{"empty", []string{}, "[]"},
		{"single", []string{"Драма"}, `["Драма"]`},
		{"keeps order", []string{"Комедия", "Драма"}, `["Комедия","Драма"]`},
		{"drops duplicates", []string{"Драма", "Комедия", "Драма"}, `["Драма","Комедия"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Serialize(tt.genres))
		})
	}
}

func TestDeserialize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"blank", "   ", []string{}},
		{"invalid", "not json", []string{}},
		{"wrong type", `{"a":1}`, []string{}},
		{"python style", `["Драма", "Комедия"]`, []string{"Драма", "Комедия"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Deserialize(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	in := `["Драма", "Комедия", "Драма"]`
	assert.Equal(t, `["Драма","Комедия"]`, Normalize(in))
	assert.Equal(t, Normalize(in), Serialize(Deserialize(in)))
	assert.Equal(t, "[]", Normalize("garbage"))
}

func TestDisplayText(t *testing.T) {
	assert.Equal(t, "Janr tanlanmagan", DisplayText(nil, LangUz))
	assert.Equal(t, "Жанр не выбран", DisplayText([]string{}, LangRu))
	assert.Equal(t, "🎭 Drama, 😂 Komediya", DisplayText([]string{"Драма", "Комедия"}, LangUz))
	assert.Equal(t, "🕵️ Детектив / Криминал", DisplayText([]string{"Детектив"}, LangRu))
	assert.Equal(t, "🎭 Drama, Nuar", DisplayText([]string{"Драма", "Nuar"}, LangUz))
}

func TestPatternDoesNotCollide(t *testing.T) {
	field := Serialize([]string{"Мелодрама"})
	assert.Contains(t, field, Pattern("Мелодрама"))
	assert.NotContains(t, field, Pattern("Драма"))
}

func TestToggle(t *testing.T) {
	sel := []string{"Драма"}
	added := Toggle(sel, "Комедия")
	assert.Equal(t, []string{"Драма", "Комедия"}, added)
	assert.Equal(t, []string{"Драма"}, sel)

	removed := Toggle(added, "Драма")
	assert.Equal(t, []string{"Комедия"}, removed)
	assert.True(t, Contains(added, "Драма"))
	assert.False(t, Contains(removed, "Драма"))
}

func TestParseLang(t *testing.T) {
	assert.Equal(t, LangRu, ParseLang("RU"))
	assert.Equal(t, LangUz, ParseLang(""))
	assert.Equal(t, LangUz, ParseLang("en"))
}

func TestLookup(t *testing.T) {
	g, ok := Lookup("Ужасы")
	require.True(t, ok)
	assert.Equal(t, "Qo'rqinchli", g.Label(LangUz))
	assert.False(t, Valid("Horror"))
}
