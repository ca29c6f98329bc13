package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvcrn/cloudflare-api-proxy/internal/env"
)

const (
	colorRed    = 31
	colorGreen  = 32
	colorYellow = 33
	colorMagent = 35

	colorBold = 1
)

var (
	once   sync.Once
	logger *zerolog.Logger
)

// Get returns the singleton logger instance, initializing it on first call.
func Get() *zerolog.Logger {
	once.Do(func() {
		logger = newLogger()
	})
	return logger
}

func colorize(s interface{}, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// newLogger builds a logger from ENV, LOG_LEVEL and LOG_DIR.
func newLogger() *zerolog.Logger {
	mode, _ := env.Get("ENV")

	logLevel := zerolog.InfoLevel
	if levelStr, ok := env.Get("LOG_LEVEL"); ok {
		if parsedLevel, err := zerolog.ParseLevel(strings.ToLower(levelStr)); err == nil {
			logLevel = parsedLevel
		} else {
			fmt.Fprintf(os.Stderr, "Invalid LOG_LEVEL \"%s\"; defaulting to 'info'\n", levelStr)
		}
	}
	zerolog.SetGlobalLevel(logLevel)

	var fileOut io.Writer
	if dir, ok := env.Get("LOG_DIR"); ok {
		f, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open log file in LOG_DIR %q: %v\n", dir, err)
		} else {
			fileOut = f
		}
	}

	if mode == "development" || mode == "dev" || mode == "" {
		return newDevelopment(fileOut)
	}
	return newProduction(fileOut)
}

// newDevelopment creates a development logger with console output and colors.
// The log file, if any, receives plain JSON lines.
func newDevelopment(fileOut io.Writer) *zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
		FormatLevel: func(i interface{}) string {
			ll, ok := i.(string)
			if !ok {
				return strings.ToUpper(fmt.Sprintf("%s", i))[0:3]
			}
			switch ll {
			case "trace":
				return colorize("TRC", colorMagent)
			case "debug":
				return colorize("DBG", colorYellow)
			case "info":
				return colorize("INF", colorGreen)
			case "warn":
				return colorize("WRN", colorRed)
			case "error":
				return colorize("ERR", colorRed)
			case "fatal":
				return colorize("FTL", colorRed)
			case "panic":
				return colorize("PNC", colorRed)
			default:
				return colorize(strings.ToUpper(ll)[0:3], colorBold)
			}
		},
	}

	var out io.Writer = console
	if fileOut != nil {
		out = zerolog.MultiLevelWriter(console, fileOut)
	}

	zl := zerolog.New(out).With().Timestamp().Logger()
	return &zl
}

// newProduction creates a production logger with JSON output and UNIX timestamps
func newProduction(fileOut io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stderr
	if fileOut != nil {
		out = zerolog.MultiLevelWriter(os.Stderr, fileOut)
	}

	zl := zerolog.New(out).With().Timestamp().Logger()
	return &zl
}
