// High level log wrapper, so it can output different log based on level.
//
// There are five levels in total: FATAL, ERROR, WARNING, INFO, DEBUG.
// The default log output level is INFO, you can change it by:
// - call log.SetLevel()
// - set environment variable `LOG_LEVEL`

package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel = zapcore.Level

const (
	LOG_LEVEL_FATAL = zapcore.FatalLevel
	LOG_LEVEL_ERROR = zapcore.ErrorLevel
	LOG_LEVEL_WARN  = zapcore.WarnLevel
	LOG_LEVEL_INFO  = zapcore.InfoLevel
	LOG_LEVEL_DEBUG = zapcore.DebugLevel
	LOG_LEVEL_ALL   = LOG_LEVEL_DEBUG
)

var _log = New()

func SetLevel(level LogLevel) {
	_log.SetLevel(level)
}

func GetLogLevel() LogLevel {
	return _log.level.Level()
}

func SetLevelByString(level string) {
	_log.SetLevelByString(level)
}

// SetOutput redirects the global logger, mostly used by tests to silence or capture output.
func SetOutput(w io.Writer) {
	level := _log.level.Level()
	_log = NewLogger(w)
	_log.SetLevel(level)
}

// FileLogConfig describes a rotated log file. Sizes are in megabytes, ages in days.
type FileLogConfig struct {
	Filename   string `toml:"filename"`
	MaxSize    int    `toml:"max-size"`
	MaxDays    int    `toml:"max-days"`
	MaxBackups int    `toml:"max-backups"`
}

// SetOutputFile sends the global logger to a file that is rotated once it outgrows MaxSize.
func SetOutputFile(conf FileLogConfig) {
	SetOutput(&lumberjack.Logger{
		Filename:   conf.Filename,
		MaxSize:    conf.MaxSize,
		MaxAge:     conf.MaxDays,
		MaxBackups: conf.MaxBackups,
		LocalTime:  true,
	})
}

func Info(v ...interface{}) {
	_log.sugar.Info(v...)
}

func Infof(format string, v ...interface{}) {
	_log.sugar.Infof(format, v...)
}

func Debug(v ...interface{}) {
	_log.sugar.Debug(v...)
}

func Debugf(format string, v ...interface{}) {
	_log.sugar.Debugf(format, v...)
}

func Warn(v ...interface{}) {
	_log.sugar.Warn(v...)
}

func Warnf(format string, v ...interface{}) {
	_log.sugar.Warnf(format, v...)
}

func Warning(v ...interface{}) {
	_log.sugar.Warn(v...)
}

func Warningf(format string, v ...interface{}) {
	_log.sugar.Warnf(format, v...)
}

func Error(v ...interface{}) {
	_log.sugar.Error(v...)
}

func Errorf(format string, v ...interface{}) {
	_log.sugar.Errorf(format, v...)
}

func Fatal(v ...interface{}) {
	_log.sugar.Fatal(v...)
}

func Fatalf(format string, v ...interface{}) {
	_log.sugar.Fatalf(format, v...)
}

func Panic(v ...interface{}) {
	_log.sugar.Panic(v...)
}

func Panicf(format string, v ...interface{}) {
	_log.sugar.Panicf(format, v...)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return _log.sugar.Sync()
}

type Logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level)
}

func (l *Logger) SetLevelByString(level string) {
	l.level.SetLevel(StringToLogLevel(level))
}

// Sugar exposes the underlying zap logger for callers that want structured fields.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

func StringToLogLevel(level string) LogLevel {
	switch level {
	case "fatal":
		return LOG_LEVEL_FATAL
	case "error":
		return LOG_LEVEL_ERROR
	case "warn", "warning":
		return LOG_LEVEL_WARN
	case "debug":
		return LOG_LEVEL_DEBUG
	case "info":
		return LOG_LEVEL_INFO
	}
	return LOG_LEVEL_ALL
}

func New() *Logger {
	return NewLogger(os.Stderr)
}

func NewLogger(w io.Writer) *Logger {
	level := zap.NewAtomicLevelAt(LOG_LEVEL_INFO)
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		level.SetLevel(StringToLogLevel(l))
	}
	encoderConf := zap.NewDevelopmentEncoderConfig()
	encoderConf.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConf), zapcore.AddSync(w), level)
	// Skip the package-level wrapper so callers' file:line is reported.
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{sugar: logger.Sugar(), level: level}
}
