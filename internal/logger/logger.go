// internal/logger/logger.go
package logger

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger zap логгер процесса и файл ротации, который нужно закрыть при выходе.
type Logger struct {
	*zap.Logger
	rotator *lumberjack.Logger
}

// New собирает tee: человекочитаемая консоль и JSON файл с ротацией.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	level := cfg.level()

	enc := zap.NewProductionEncoderConfig()
	if cfg.Development {
		enc = zap.NewDevelopmentEncoderConfig()
	}
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(console), level),
	}

	l := &Logger{}
	if cfg.LogFile != "" {
		l.rotator = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(l.rotator), level))
	}

	l.Logger = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return l, nil
}

// WithBatch логгер с batch_id.
func (l *Logger) WithBatch(id uuid.UUID) *zap.Logger {
	return l.With(zap.String("batch_id", id.String()))
}

// WithSignature логгер с подписью транзакции.
func (l *Logger) WithSignature(sig string) *zap.Logger {
	return l.With(zap.String("signature", sig))
}

// WithOperation логгер операции с собственным correlation_id.
func (l *Logger) WithOperation(operation string) *zap.Logger {
	return l.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.New().String()),
	)
}

// TrackPerformance пишет длительность операции при вызове возвращённой функции.
func (l *Logger) TrackPerformance(operation string) (end func()) {
	start := time.Now()
	log := l.WithOperation(operation)
	log.Debug("Starting operation")

	return func() {
		elapsed := time.Since(start)
		log.Debug("Operation completed",
			zap.Duration("duration", elapsed),
			zap.Float64("duration_ms", float64(elapsed.Microseconds())/1000))
	}
}

// Sync сбрасывает буферы; EINVAL и ENOTTY от stdout игнорируются.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}

// Close синхронизирует и закрывает файл ротации.
func (l *Logger) Close() error {
	err := l.Sync()
	if l.rotator != nil {
		err = errors.Join(err, l.rotator.Close())
	}
	return err
}
