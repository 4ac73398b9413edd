package slogx

import (
	"fmt"
	"log/slog"
)

// KeyLoggerName is the attribute key components use to name their logger.
const KeyLoggerName = "logger"

// Error renders err under the "error" key. A nil error renders as "<nil>".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName tags a record with the component that emitted it.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}
