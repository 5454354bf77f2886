package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global structured logger. Packages that need typed fields use
// it directly; everything else goes through the sugared helpers in this
// package.
var Log *zap.Logger

var sugar *zap.SugaredLogger

// The globals are usable from package load; InitWithLevel reconfigures
// them once flags and config are parsed.
func init() {
	Init()
}

// Init initializes the global logger. Level and format may be overridden via
// CHATCORE_LOG_LEVEL and CHATCORE_LOG_FORMAT ("json"|"text") for tests and
// production.
func Init() {
	InitWithLevel("")
}

// InitWithLevel initializes the global logger honoring the provided level
// string ("debug", "info", "warn", "error"). An empty level falls back to
// the environment.
func InitWithLevel(level string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("CHATCORE_LOG_LEVEL")))
	}
	var zl zapcore.Level
	switch lvl {
	case "debug":
		zl = zapcore.DebugLevel
	case "warn", "warning":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	default:
		zl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if strings.ToLower(os.Getenv("CHATCORE_LOG_FORMAT")) == "text" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), zl)
	Log = zap.New(core)
	sugar = Log.Sugar()
}

// ensure guards against use before Init in tests that construct components
// directly.
func ensure() {
	if Log == nil {
		Init()
	}
}

// Info logs at info level with alternating key/value pairs.
func Info(msg string, kv ...interface{}) {
	ensure()
	sugar.Infow(msg, kv...)
}

// Warn logs at warn level with alternating key/value pairs.
func Warn(msg string, kv ...interface{}) {
	ensure()
	sugar.Warnw(msg, kv...)
}

// Error logs at error level with alternating key/value pairs.
func Error(msg string, kv ...interface{}) {
	ensure()
	sugar.Errorw(msg, kv...)
}

// Debug logs at debug level with alternating key/value pairs.
func Debug(msg string, kv ...interface{}) {
	ensure()
	sugar.Debugw(msg, kv...)
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
