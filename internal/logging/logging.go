// Package logging builds the zap logger shared by all components and
// adapts it for pion.
package logging

import (
	"fmt"
	"strings"

	"github.com/pion/logging"
	"go.uber.org/zap"
)

// New returns a logger at the given level ("debug", "info", "warn",
// "error"). Debug uses the development encoder.
func New(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// PionFactory routes pion's internal logging into logger. Each pion scope
// becomes a named child logger under "pion".
type PionFactory struct {
	logger *zap.Logger
}

var _ logging.LoggerFactory = (*PionFactory)(nil)

// NewPionFactory wraps logger.
func NewPionFactory(logger *zap.Logger) *PionFactory {
	return &PionFactory{logger: logger.Named("pion")}
}

// NewLogger implements logging.LoggerFactory.
func (f *PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{s: f.logger.Named(scope).Sugar()}
}

type pionLogger struct {
	s *zap.SugaredLogger
}

// pion's trace level is far too chatty for anything but debugging pion
// itself, so it maps to debug.
func (l *pionLogger) Trace(msg string)                          { l.s.Debug(msg) }
func (l *pionLogger) Tracef(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *pionLogger) Debug(msg string)                          { l.s.Debug(msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *pionLogger) Info(msg string)                           { l.s.Info(msg) }
func (l *pionLogger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *pionLogger) Warn(msg string)                           { l.s.Warn(msg) }
func (l *pionLogger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *pionLogger) Error(msg string)                          { l.s.Error(msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }
