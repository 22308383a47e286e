package logger

import (
	"io"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin zap wrapper that takes structured fields as a map and
// stamps every entry with the application name and caller.
type Logger struct {
	appEnv  string
	appName string
	level   zap.AtomicLevel
	l       *zap.Logger
}

// NewZapLogger builds a JSON logger writing to the given writers, or to
// stdout when none are passed. The level starts at debug.
func NewZapLogger(appName string, writers ...io.Writer) *Logger {
	var multiWriters []zapcore.WriteSyncer

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = timeEncoder("2006-01-02T15:04:05.000Z07:00", time.UTC)
	cfg.TimeKey = "timestamp"

	if len(writers) == 0 {
		multiWriters = append(multiWriters, zapcore.AddSync(os.Stdout))
	} else {
		for _, writer := range writers {
			multiWriters = append(multiWriters, zapcore.AddSync(writer))
		}
	}

	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.NewMultiWriteSyncer(multiWriters...),
		level,
	)

	return &Logger{
		appName: appName,
		level:   level,
		l:       zap.New(core),
	}
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{
		level: zap.NewAtomicLevel(),
		l:     zap.NewNop(),
	}
}

// SetEnv tags subsequent entries with the deployment environment.
func (l *Logger) SetEnv(env string) {
	l.appEnv = env
}

// SetLevel changes the minimum level; unknown names leave it untouched.
func (l *Logger) SetLevel(level string) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		l.Warning("unknown log level, keeping current", map[string]any{"level": level})
		return
	}
	l.level.SetLevel(parsed)
}

func (l *Logger) Stop() error {
	return l.l.Sync()
}

func (l *Logger) Error(err error, fields ...map[string]any) {
	l.log(zapcore.ErrorLevel, err.Error(), fields, zap.String("error", err.Error()))
}

func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.log(zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warning(msg string, fields ...map[string]any) {
	l.log(zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.log(zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Fatal(msg string, fields ...map[string]any) {
	l.log(zapcore.FatalLevel, msg, fields)
}

func (l *Logger) log(level zapcore.Level, msg string, fields []map[string]any, extra ...zap.Field) {
	ce := l.l.WithOptions(zap.Fields(firstFields(fields)...)).Check(level, msg)
	if ce == nil {
		return
	}
	file, line, funcName := getRuntimeParams()
	ce.Write(append(extra,
		zap.String("app_zone", l.appEnv),
		zap.String("app_name", l.appName),
		zap.String("caller_file", file),
		zap.Int("caller_line", line),
		zap.String("caller_func", funcName),
	)...)
}

func firstFields(fields []map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	return mapToZapFields(fields[0])
}

func mapToZapFields(data map[string]any) []zap.Field {
	zapFields := make([]zap.Field, 0, len(data))
	for k, v := range data {
		if err, ok := v.(error); ok {
			zapFields = append(zapFields, zap.NamedError(k, err))
			continue
		}
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return zapFields
}

// getRuntimeParams reports the caller of the exported logging method.
func getRuntimeParams() (file string, line int, funcName string) {
	pc, file, line, ok := runtime.Caller(3)
	if !ok {
		return "not_defined", 0, "not_defined"
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		funcName = fn.Name()
	}
	return file, line, funcName
}

func timeEncoder(layout string, location *time.Location) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(location).Format(layout))
	}
}
