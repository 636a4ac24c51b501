package core

import (
	"os"

	"go.uber.org/zap"

	"printstack/internal/storage"
)

// Logger is the structured logging surface carried through the service.
type Logger = storage.Logger

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return storage.NopLogger() }

// zapLogger adapts a sugared zap logger to the Logger interface. Args are
// alternating key/value pairs.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// NewZapLogger builds a Logger over zap. Production config when
// PRINTSTACK_ENV resolves to production, development config otherwise.
// The returned flush function syncs buffered entries.
func NewZapLogger() (Logger, func(), error) {
	var (
		logger *zap.Logger
		err    error
	)
	if os.Getenv("PRINTSTACK_ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, nil, err
	}
	flush := func() { _ = logger.Sync() }
	return zapLogger{sugar: logger.Sugar()}, flush, nil
}
