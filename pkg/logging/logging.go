// Package logging wires ectologger onto a zap backend.
package logging

import (
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger. pretty switches to the console
// encoder for local development.
func New(level string, pretty bool) (ectologger.Logger, func(), error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}

	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)
	flush := func() { _ = zapLogger.Sync() }
	return logger, flush, nil
}
