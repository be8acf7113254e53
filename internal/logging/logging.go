// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field keys shared across components.
const (
	KeyComponent = "component"
	KeyAttemptID = "attemptId"
	KeyVersion   = "version"
	KeyState     = "state"
	KeyStrategy  = "strategy"
	KeyPath      = "path"
)

// Init parses and sets the log level, output and format.
// path "" or "console" logs to stderr; anything else is a rotated file.
// format is "text" (default) or "json".
func Init(level, path, format string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level %q: %w", level, err)
	}

	log.SetOutput(Output(path))

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}

	log.SetLevel(lvl)
	return nil
}

// Output returns the writer for the given log path.
func Output(path string) io.Writer {
	if path == "" || path == "console" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		// Log file absolute path, os agnostic
		Filename:   filepath.ToSlash(path),
		MaxSize:    5, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}
}

// L returns a logger tagged with a component name.
func L(component string) *log.Entry {
	return log.WithField(KeyComponent, component)
}
