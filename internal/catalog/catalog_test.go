package catalog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	ok := Record{Shape: Seasoned, Code: 7, Key: EpisodeKey{Season: 1, Episode: 2}, Title: "Dark", MediaRef: "f1", Genres: []string{"Драма"}}
	require.NoError(t, Validate(ok))

	tests := []struct {
		name string
		mut  func(r *Record)
	}{
		{"zero code", func(r *Record) { r.Code = 0 }},
		{"no title", func(r *Record) { r.Title = "" }},
		{"no media", func(r *Record) { r.MediaRef = "" }},
		{"season zero", func(r *Record) { r.Key.Season = 0 }},
		{"episode zero", func(r *Record) { r.Key.Episode = 0 }},
		{"unknown genre", func(r *Record) { r.Genres = []string{"Horror"} }},
		{"no shape", func(r *Record) { r.Shape = ShapeNone }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ok
			tt.mut(&r)
			err := Validate(r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestValidateShapeKeys(t *testing.T) {
	assert.NoError(t, Validate(Record{Shape: Standalone, Code: 1, Title: "A", MediaRef: "m"}))
	assert.Error(t, Validate(Record{Shape: Standalone, Code: 1, Key: EpisodeKey{Episode: 1}, Title: "A", MediaRef: "m"}))
	assert.NoError(t, Validate(Record{Shape: Flat, Code: 1, Key: EpisodeKey{Episode: 3}, Title: "A", MediaRef: "m"}))
	assert.Error(t, Validate(Record{Shape: Flat, Code: 1, Key: EpisodeKey{Season: 1, Episode: 3}, Title: "A", MediaRef: "m"}))
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("rename: %w", Errorf(CodeCodeConflict, "code %d is taken", 5))
	assert.True(t, errors.Is(err, ErrCodeConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, CodeCodeConflict, CodeOf(err))

	wrapped := Storage("insert", errors.New("boom"))
	assert.True(t, errors.Is(wrapped, ErrStorage))
	assert.Contains(t, wrapped.Error(), "boom")
	assert.Nil(t, Storage("noop", nil))
	assert.True(t, errors.Is(Storage("x", ErrDuplicateKey), ErrDuplicateKey))
}

func TestShapeString(t *testing.T) {
	for _, s := range Shapes {
		parsed, err := ParseShape(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseShape("movie")
	assert.Error(t, err)
}

func TestSeasons(t *testing.T) {
	recs := []Record{
		{Key: EpisodeKey{Season: 1, Episode: 1}},
		{Key: EpisodeKey{Season: 1, Episode: 2}},
		{Key: EpisodeKey{Season: 3, Episode: 1}},
	}
	assert.Equal(t, []int{1, 3}, Seasons(recs))
	assert.Len(t, InSeason(recs, 1), 2)
	assert.Empty(t, InSeason(recs, 2))
}

func TestRankingScore(t *testing.T) {
	assert.Equal(t, int64(53), Ranking{Favorites: 5, Views: 3}.Score())
}
