// Package logger provides component-tagged structured logging for the agent.
// All log lines carry a "component" field so the interleaved output of the
// agent loop, dispatcher, scheduler, and channels stays attributable.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base *zap.SugaredLogger
)

func init() {
	base = build(os.Getenv("GRIZZYCLAW_LOG_LEVEL"), "")
}

// Configure replaces the process logger. Level is one of debug/info/warn/error;
// file, when non-empty, receives a copy of every line in addition to stderr.
func Configure(level, file string) {
	mu.Lock()
	defer mu.Unlock()
	if old := base; old != nil {
		_ = old.Sync()
	}
	base = build(level, file)
}

func build(level, file string) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn", "warning":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEnc := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), lvl),
	}
	if strings.TrimSpace(file) != "" {
		if f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			jsonEnc := zapcore.NewJSONEncoder(encCfg)
			cores = append(cores, zapcore.NewCore(jsonEnc, zapcore.Lock(f), lvl))
		}
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger.Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func kvs(component string, fields map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, 2+2*len(fields))
	out = append(out, "component", component)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func DebugC(component, msg string) {
	current().Debugw(msg, "component", component)
}

func DebugCF(component, msg string, fields map[string]interface{}) {
	current().Debugw(msg, kvs(component, fields)...)
}

func InfoC(component, msg string) {
	current().Infow(msg, "component", component)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	current().Infow(msg, kvs(component, fields)...)
}

func WarnC(component, msg string) {
	current().Warnw(msg, "component", component)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	current().Warnw(msg, kvs(component, fields)...)
}

func ErrorC(component, msg string) {
	current().Errorw(msg, "component", component)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	current().Errorw(msg, kvs(component, fields)...)
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	_ = current().Sync()
}
