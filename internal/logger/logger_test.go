package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCachesByName(t *testing.T) {
	require.NoError(t, Init(DefaultConfig()))
	assert.Same(t, Get("app"), Get("app"))
	assert.NotSame(t, Get("app"), Get("bot"))
}

func TestInitLevelAndFormat(t *testing.T) {
	c := DefaultConfig()
	c.Level = "debug"
	c.Format = "json"
	require.NoError(t, Init(c))
	defer func() { _ = Init(DefaultConfig()) }()

	l := Get("app")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	_, isJSON := l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestFileOutput(t *testing.T) {
	dir := t.TempDir()
	c := DefaultConfig()
	c.Output = "file"
	c.Path = dir
	require.NoError(t, Init(c))
	defer func() { _ = Init(DefaultConfig()) }()

	WithModule("wizard").Info("session started")
	Close()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "session started")
	assert.Contains(t, string(data), "module=wizard")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	c := DefaultConfig()
	c.Level = "loud"
	require.NoError(t, Init(c))
	defer func() { _ = Init(DefaultConfig()) }()
	assert.Equal(t, logrus.InfoLevel, Get("app").GetLevel())
}
