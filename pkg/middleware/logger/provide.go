package logger

import "go.uber.org/zap"

func ProvideLoggerMiddleware() *Middleware { return &Middleware{} }
func ProvideLogger() *zap.Logger           { return NewLog("system.log") }

// ProvideBridgeLogger is the sink for bridge diagnostics and script log lines.
func ProvideBridgeLogger() *zap.Logger { return NewLog("bridge.log") }
