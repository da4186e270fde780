// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a logger writing to w at the given level and format.
// An empty level means info; an empty format means text. A nil writer means stderr.
func New(level, format string, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	if w == nil {
		w = os.Stderr
	}
	log.SetOutput(w)

	lvl := logrus.InfoLevel
	if level != "" {
		var err error
		lvl, err = logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", FormatText:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q (must be text or json)", format)
	}

	return log, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
