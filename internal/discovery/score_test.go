package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		title, query string
		want         int
	}{
		{"The Matrix", "the matrix", ScoreExact},
		{"Matrix Reloaded", "MATRIX", ScorePrefix},
		{"The Matrix", "matrix", ScoreSubstring},
		{"Inception", "matrix", ScoreOther},
		{"Тёмный рыцарь", "тёмный", ScorePrefix},
	}
	for _, tt := range tests {
		t.Run(tt.title+"/"+tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.title, tt.query))
		})
	}
}

func TestInterval(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for _, i := range Intervals {
		parsed, err := ParseInterval(string(i))
		require.NoError(t, err)
		assert.Equal(t, i, parsed)
	}
	assert.Equal(t, now.AddDate(0, 0, -7), Week.Since(now))
	assert.Equal(t, now.AddDate(0, 0, -365), Year.Since(now))
	assert.True(t, Total.Since(now).IsZero())

	_, err := ParseInterval("decade")
	assert.Error(t, err)
}
