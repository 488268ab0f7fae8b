// internal/logger/config.go
package logger

import (
	"io"

	"go.uber.org/zap/zapcore"
)

// Config настройки консольного и файлового вывода.
type Config struct {
	// Level минимальный уровень; Development всегда опускает его до debug.
	Level       zapcore.Level
	Development bool

	// LogFile пустой отключает файловый вывод.
	LogFile    string
	MaxSize    int // мегабайты
	MaxAge     int // дни
	MaxBackups int
	Compress   bool

	// Console по умолчанию os.Stdout.
	Console io.Writer
}

// DefaultConfig info уровень, ротация 100MB x 3 файла за 7 дней.
func DefaultConfig() *Config {
	return &Config{
		Level:      zapcore.InfoLevel,
		LogFile:    "candy-mint.log",
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
}

func (c *Config) level() zapcore.Level {
	if c.Development {
		return zapcore.DebugLevel
	}
	return c.Level
}
