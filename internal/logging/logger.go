package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zbucket/internal/config"
)

// InitLogger sets the log level and format based on the provided configuration
func InitLogger(cfg *config.Config) {
	setLogLevel(cfg.LogLevel)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

// InitFromEnv initializes logging from environment variables
func InitFromEnv() {
	setLogLevel(os.Getenv("LOG_LEVEL"))
}

// ParseLevel maps a configured level name to a logrus level. Unknown names
// fall back to error.
func ParseLevel(logLevel string) log.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}

// setLogLevel sets the log level based on string input
func setLogLevel(logLevel string) {
	log.SetLevel(ParseLevel(logLevel))
}

func init() {
	InitFromEnv()
}
