package log

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
	atomLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger builds the global logger writing key=value console lines to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			atomLevel,
		)
		logger = zap.New(core)
	})
}

// SetLevel changes the minimum level that is written.
func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		atomLevel.SetLevel(zapcore.DebugLevel)
	case LevelError:
		atomLevel.SetLevel(zapcore.ErrorLevel)
	default:
		atomLevel.SetLevel(zapcore.InfoLevel)
	}
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelDebug, "debug":
		return LevelDebug
	case LevelError, "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger exposes the underlying zap logger for libraries that want one.
func Logger() *zap.Logger {
	initLogger()
	return logger
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func Debug(msg string, kv ...any) {
	initLogger()
	logger.Debug(msg, fields(kv...)...)
}

func Info(msg string, kv ...any) {
	initLogger()
	logger.Info(msg, fields(kv...)...)
}

func Error(msg string, err error, kv ...any) {
	initLogger()
	logger.Error(msg, append([]zap.Field{zap.Error(err)}, fields(kv...)...)...)
}

// fields converts key, value, key, value, ... pairs into zap fields.
// Non-string keys are skipped and an odd trailing value is ignored.
func fields(kv ...any) []zap.Field {
	out := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, field(key, kv[i+1]))
	}
	return out
}

func field(key string, v any) zap.Field {
	switch val := v.(type) {
	case string:
		return zap.String(key, val)
	case int:
		return zap.Int(key, val)
	case bool:
		return zap.Bool(key, val)
	case error:
		return zap.NamedError(key, val)
	case fmt.Stringer:
		return zap.Stringer(key, val)
	default:
		return zap.Any(key, val)
	}
}
