package badger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// dbLogger routes badger's printf-style logging to zap.
type dbLogger struct {
	logger *zap.Logger
}

func (l dbLogger) Errorf(format string, args ...any) {
	l.logger.Error(trim(format, args))
}

func (l dbLogger) Warningf(format string, args ...any) {
	l.logger.Warn(trim(format, args))
}

func (l dbLogger) Infof(format string, args ...any) {
	l.logger.Info(trim(format, args))
}

func (l dbLogger) Debugf(format string, args ...any) {
	l.logger.Debug(trim(format, args))
}

func trim(format string, args []any) string {
	return strings.Trim(fmt.Sprintf(format, args...), "\n")
}
