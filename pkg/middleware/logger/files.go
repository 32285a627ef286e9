package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logDir = "log"

// NewLog returns a JSON logger writing to log/<n> (rotated) and stdout.
func NewLog(n string) *zap.Logger {
	_ = os.MkdirAll(logDir, 0o755)

	cfg := zap.NewProductionEncoderConfig()
	cfg.MessageKey = zapcore.OmitKey

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, n),
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, zap.InfoLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.Lock(os.Stdout), zap.InfoLevel),
	)
	return zap.New(core)
}

var (
	accessMu       sync.Mutex
	accessOverride *zap.Logger
	defaultAccess  = sync.OnceValue(func() *zap.Logger { return NewLog("http-access.log") })
)

func accessLogger() *zap.Logger {
	accessMu.Lock()
	defer accessMu.Unlock()
	if accessOverride != nil {
		return accessOverride
	}
	return defaultAccess()
}

// SetAccessLogger lets tests/CLIs override the shared access logger.
func SetAccessLogger(l *zap.Logger) {
	if l != nil {
		accessMu.Lock()
		accessOverride = l
		accessMu.Unlock()
	}
}
