// Package logger builds the process loggers: logrus with an optional rotated
// file output.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls level, format and destination.
type Config struct {
	// trace, debug, info, warn, error
	Level string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	// json or text
	Format string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=json text"`
	// stdout, file or both
	Output string `env:"LOG_OUTPUT" envDefault:"stdout" validate:"oneof=stdout file both"`

	Path       string `env:"LOG_PATH" envDefault:"./logs"`
	MaxSize    int    `env:"LOG_MAX_SIZE" envDefault:"100"` // MB
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"7"`
	MaxAge     int    `env:"LOG_MAX_AGE" envDefault:"7"` // days
	Compress   bool   `env:"LOG_COMPRESS" envDefault:"true"`
}

// DefaultConfig is what tests and bare runs get.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text", Output: "stdout", Path: "./logs", MaxSize: 100, MaxBackups: 7, MaxAge: 7, Compress: true}
}

var (
	mu      sync.Mutex
	cfg     = DefaultConfig()
	loggers = map[string]*logrus.Logger{}
	closers []io.Closer
)

// Init replaces the configuration. Loggers created earlier are rebuilt on
// next use.
func Init(c Config) error {
	if c.Output == "file" || c.Output == "both" {
		if err := os.MkdirAll(c.Path, 0o755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	cfg = c
	loggers = map[string]*logrus.Logger{}
	return nil
}

// Close flushes and closes rotated files.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
}

// Get returns the named logger, creating it on first use. Each name writes
// to its own file when file output is on.
func Get(name string) *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[name]; ok {
		return l
	}
	l := newLogger(name)
	loggers[name] = l
	return l
}

func newLogger(name string) *logrus.Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}

	var writers []io.Writer
	if cfg.Output == "stdout" || cfg.Output == "both" || cfg.Output == "" {
		writers = append(writers, os.Stdout)
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		fw := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Path, strings.ReplaceAll(name, "/", "_")+".log"),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		closers = append(closers, fw)
		writers = append(writers, fw)
	}
	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}
	return l
}

// App is the main application logger.
func App() *logrus.Logger { return Get("app") }

// WithModule returns an app logger entry tagged with a module name.
func WithModule(module string) *logrus.Entry {
	return App().WithField("module", module)
}

// Discard returns an entry that drops everything, for tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
