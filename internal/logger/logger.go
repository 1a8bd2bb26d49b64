package logger

import (
	"fmt"
	"io"
	"os"
	"wager-leaderboard/internal/config"
	"wager-leaderboard/internal/constants"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

func New(cfg *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    constants.LogFileMaxSizeMB,
			MaxBackups: constants.LogFileMaxBackups,
			MaxAge:     constants.LogFileMaxAgeDays,
			Compress:   true,
		})
	}

	return SetLevel(out, level), nil
}

func SetLevel(out io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Logger()

	logger = logger.Level(level)

	return logger
}
