package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel определяет уровень логирования из переменной окружения.
// Возможные значения: DEBUG, INFO, WARN, ERROR
// По умолчанию: INFO
func LogLevel() slog.Level {
	level := strings.ToUpper(os.Getenv("LOG_LEVEL"))
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат вывода определяется переменной LOG_FORMAT:
//   - "json" (по умолчанию) — JSON формат для CI
//   - "text" — человекочитаемый формат для терминала
//
// Логи пишутся в stderr: stdout занят отчётом.
func SetupLogger() *slog.Logger {
	return NewLogger(os.Stderr, LogLevel(), os.Getenv("LOG_FORMAT"))
}

// SetupVerboseLogger — SetupLogger с принудительным уровнем DEBUG (--verbose).
func SetupVerboseLogger() *slog.Logger {
	return NewLogger(os.Stderr, slog.LevelDebug, os.Getenv("LOG_FORMAT"))
}

// NewLogger создаёт логгер и делает его глобальным.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithScenario возвращает логгер с добавленным именем сценария и файлом.
func WithScenario(logger *slog.Logger, name, source string) *slog.Logger {
	if source == "" {
		return logger.With("scenario", name)
	}
	return logger.With("scenario", name, "source", source)
}

// WithStep возвращает логгер с добавленным шагом.
func WithStep(logger *slog.Logger, index int, name string) *slog.Logger {
	return logger.With("step", index+1, "step_name", name)
}
