package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger *slog.Logger
	level        slog.LevelVar
	once         sync.Once
)

// Init installs the global JSON logger. Debug level exposes the digest
// diagnostics used to chase signature mismatches.
func Init(lvl string) {
	once.Do(func() {
		level.Set(ParseLevel(lvl))
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: &level,
		})
		globalLogger = slog.New(handler)
		slog.SetDefault(globalLogger)
	})
}

// SetLevel adjusts verbosity at runtime, e.g. after the config is loaded or
// when an operator needs digest diagnostics on a live instance.
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}

// ParseLevel maps a config string to a slog level; unknown values mean info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the global logger instance
func Get() *slog.Logger {
	if globalLogger == nil {
		Init("info")
	}
	return globalLogger
}

// Tx returns a logger scoped to one transaction's lifecycle on a network.
// Every broadcast/confirm/fail line for the same transfer shares these fields
// so the trail can be grepped by hash.
func Tx(network, txHash string) *slog.Logger {
	return Get().With(
		slog.String("network", network),
		slog.String("tx_hash", txHash),
	)
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func With(args ...any) *slog.Logger {
	return Get().With(args...)
}

func LogError(ctx context.Context, err error, msg string, args ...any) {
	if err == nil {
		return
	}
	args = append(args, slog.String("error", err.Error()))
	Get().ErrorContext(ctx, msg, args...)
}
