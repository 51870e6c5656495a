// Package logging configures the structured logger shared by all
// commands.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction.
type Config struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
	Output string `yaml:"output"` // stdout | stderr | file path
	MaxAge int    `yaml:"max_age_days"`
}

// New builds a logrus logger from the config. Invalid level or format
// is a deployment mistake and fails loudly.
func New(cfg Config) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetReportCaller(true)

	level := strings.ToLower(cfg.Level)
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = strings.ToLower(env)
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	logger.SetLevel(lvl)

	callerPrettyfier := func(f *runtime.Frame) (string, string) {
		file := filepath.Base(f.File)
		return "", fmt.Sprintf("%s:%d", file, f.Line)
	}

	switch cfg.Format {
	case "json", "":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	switch cfg.Output {
	case "stdout", "":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		// File path; rotate so a long-running engine never fills a disk.
		logger.SetOutput(&lumberjack.Logger{
			Filename: cfg.Output,
			MaxAge:   cfg.MaxAge,
			MaxSize:  100, // MB
			Compress: true,
		})
	}

	return logger, nil
}

// WithComponent tags entries with the subsystem that produced them.
func WithComponent(logger *logrus.Logger, component string) *logrus.Entry {
	return logger.WithField("component", component)
}
