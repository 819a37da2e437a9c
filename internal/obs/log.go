package obs

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	logMu  sync.Mutex
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// InitLogger configures the shared logger. Level names follow zerolog
// ("debug", "info", "warn", ...); unknown levels fall back to info.
func InitLogger(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	logMu.Lock()
	defer logMu.Unlock()
	logger = logger.Level(lvl)
}

// Logger returns the shared structured logger used across the service.
func Logger() zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	return logger
}

// SetOutput redirects log output. Tests use this to capture emitted lines.
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = logger.Output(w)
}
