package orm

import (
	"context"

	"go.uber.org/zap"
)

// Logger is the interface for statement logging.
type Logger interface {
	Log(ctx context.Context, query string, args ...any)
}

// ZapLogger adapts a *zap.Logger to the Logger interface.
type ZapLogger struct {
	l *zap.Logger
}

// NewZapLogger wraps the given zap logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{l: l}
}

func (z *ZapLogger) Log(_ context.Context, query string, args ...any) {
	z.l.Debug("orm query",
		zap.String("sql", query),
		zap.Any("args", args),
	)
}

var _ Logger = (*ZapLogger)(nil)
