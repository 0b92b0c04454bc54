package observability

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"sitewatch-parser/internal/config"
)

// Logger пишет структурные логи в JSON, в stderr и в файл с ротацией.
type Logger struct {
	log  *slog.Logger
	file *lumberjack.Logger
}

func NewLogger(cfg config.ObservabilityConfig) *Logger {
	var (
		out  io.Writer = os.Stderr
		file *lumberjack.Logger
	)

	if cfg.LogPath != "" {
		_ = os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755)
		file = &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, file)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)})
	return &Logger{log: slog.New(handler), file: file}
}

// NewNopLogger для тестов: всё отбрасывается.
func NewNopLogger() *Logger {
	return &Logger{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func (l *Logger) With(fields ...any) *Logger {
	return &Logger{log: l.log.With(fields...), file: l.file}
}

func (l *Logger) Debug(msg string, fields ...any) {
	l.log.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...any) {
	l.log.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...any) {
	l.log.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...any) {
	l.log.Error(msg, fields...)
}

// Slog отдаёт нижележащий *slog.Logger для библиотек, которые его принимают.
func (l *Logger) Slog() *slog.Logger {
	return l.log
}

// Close закрывает файл логов (если он был открыт)
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
