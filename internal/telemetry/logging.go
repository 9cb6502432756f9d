package telemetry

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/torosent/repeater/internal/request"
)

// SetupLogger configures the global log level and returns a logger writing
// to w. format is "console" (default) for humans or "json".
func SetupLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl := zerolog.WarnLevel
	if level = strings.TrimSpace(level); level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
		}
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console", "text":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.StampMilli}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q (want console or json)", format)
	}

	return zerolog.New(w).With().Timestamp().Logger(), nil
}

// FailureLogger writes failed iterations as warnings.
type FailureLogger struct {
	logger zerolog.Logger
}

// NewFailureLogger wraps logger.
func NewFailureLogger(logger zerolog.Logger) *FailureLogger {
	return &FailureLogger{logger: logger}
}

// LogFailure records one failed request.
func (l *FailureLogger) LogFailure(req request.Resolved, err error) {
	l.logger.Warn().
		Str("method", req.Method).
		Str("url", req.URL).
		Str("protocol", string(req.Protocol)).
		Err(err).
		Msg("iteration failed")
}
