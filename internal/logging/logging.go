package logging

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/config"
)

func NewLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, errors.Wrap(err, "parse log level")
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.LogDev {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	l, err := zapCfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return l.Sugar(), nil
}

// gormWriter routes gorm's printf-style output into zap.
type gormWriter struct {
	l *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.l.Warnf(format, args...)
}

func NewGormLogger(l *zap.SugaredLogger) logger.Interface {
	return logger.New(gormWriter{l: l.Named("gorm")}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		Colorful:                  false,
		IgnoreRecordNotFoundError: true,
	})
}
