// pkg/bridge/log.go
package bridge

import (
	"context"
	"fmt"
	"sync/atomic"

	chimd "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type threadKey struct{}

// WithThread tags ctx with the host worker identity printed in diagnostic lines.
func WithThread(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, threadKey{}, id)
}

// ThreadID returns the worker identity for ctx: an explicit WithThread tag, the
// chi request id, or "main".
func ThreadID(ctx context.Context) string {
	if ctx == nil {
		return "main"
	}
	if id, ok := ctx.Value(threadKey{}).(string); ok && id != "" {
		return id
	}
	if id := chimd.GetReqID(ctx); id != "" {
		return id
	}
	return "main"
}

// Logger writes "(thread <id>) <component>: <message>" lines to zap and, when
// forwarding is on, best-effort to the registered callback's Log.
type Logger struct {
	zl      *zap.Logger
	reg     atomic.Pointer[Registry]
	forward atomic.Bool
}

// NewLogger wraps zl. A nil zl discards everything.
func NewLogger(zl *zap.Logger) *Logger {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Logger{zl: zl}
}

// Zap exposes the underlying logger.
func (l *Logger) Zap() *zap.Logger { return l.zl }

// ForwardTo enables forwarding diagnostic lines to reg's current callback.
func (l *Logger) ForwardTo(reg *Registry, on bool) {
	l.reg.Store(reg)
	l.forward.Store(on)
}

// Line formats a diagnostic line without emitting it.
func Line(ctx context.Context, component, msg string) string {
	return fmt.Sprintf("(thread %s) %s: %s", ThreadID(ctx), component, msg)
}

func (l *Logger) Infof(ctx context.Context, component, format string, args ...any) {
	l.emit(ctx, zap.InfoLevel, component, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(ctx context.Context, component, format string, args ...any) {
	l.emit(ctx, zap.WarnLevel, component, fmt.Sprintf(format, args...))
}

func (l *Logger) emit(ctx context.Context, lvl zapcore.Level, component, msg string) {
	line := Line(ctx, component, msg)
	if ce := l.zl.Check(lvl, ""); ce != nil {
		ce.Write(
			zap.String("diagnostic", line),
			zap.String("thread", ThreadID(ctx)),
			zap.String("component", component),
		)
	}
	if l.forward.Load() {
		l.forwardLine(ctx, line)
	}
}

// forwardLine hands line to the callback's Log. Failures and panics stay local.
func (l *Logger) forwardLine(ctx context.Context, line string) {
	reg := l.reg.Load()
	if reg == nil {
		return
	}
	lease := reg.Acquire()
	if lease == nil {
		return
	}
	defer lease.Release()
	defer func() {
		if r := recover(); r != nil {
			l.zl.Warn("", zap.String("diagnostic", Line(ctx, "Log", fmt.Sprintf("callback panicked: %v", r))))
		}
	}()
	if err := lease.Callback().Log(ctx, line); err != nil {
		l.zl.Debug("", zap.String("diagnostic", Line(ctx, "Log", err.Error())))
	}
}
