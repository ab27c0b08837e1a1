// pkg/logger/logger.go
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// Field aliases zap's field so callers never import zap directly.
type Field = zapcore.Field

// Logger is the logging contract shared by every component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	Named(name string) Logger
	Sync() error
}

// Config controls level, encoding and file rotation.
type Config struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
	MaxSizeMB   int      `yaml:"maxSize"`
	MaxBackups  int      `yaml:"maxBackups"`
	MaxAgeDays  int      `yaml:"maxAge"`
	Compress    bool     `yaml:"compress"`
}

// Option mutates the logger configuration.
type Option func(*Config)

func WithLevel(level string) Option {
	return func(c *Config) { c.Level = level }
}

func WithEncoding(encoding string) Option {
	return func(c *Config) { c.Encoding = encoding }
}

func WithOutputPaths(paths []string) Option {
	return func(c *Config) { c.OutputPaths = paths }
}

// WithConfigFile overlays settings from a YAML file. A missing file is
// ignored so deployments without one fall back to the defaults.
func WithConfigFile(path string) Option {
	return func(c *Config) {
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		_ = yaml.Unmarshal(data, c)
	}
}

type zapLogger struct {
	zap *zap.Logger
}

// NewLogger builds a zap-backed logger. File outputs rotate via lumberjack.
func NewLogger(opts ...Option) (Logger, error) {
	cfg := &Config{
		Level:       "info",
		Encoding:    "json",
		OutputPaths: []string{"stdout"},
		MaxSizeMB:   100,
		MaxBackups:  3,
		MaxAgeDays:  7,
		Compress:    true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("can't parse log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var cores []zapcore.Core
	for _, path := range cfg.OutputPaths {
		var writer zapcore.WriteSyncer
		switch path {
		case "stdout":
			writer = zapcore.AddSync(os.Stdout)
		case "stderr":
			writer = zapcore.AddSync(os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("can't create log directory: %w", err)
			}
			writer = zapcore.AddSync(&lumberjack.Logger{
				Filename:   path,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			})
		}

		var encoder zapcore.Encoder
		if cfg.Encoding == "console" {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, writer, level))
	}

	z := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	)
	return &zapLogger{zap: z}, nil
}

// Field constructors.
func String(key, val string) Field                 { return zap.String(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func Float64(key string, val float64) Field        { return zap.Float64(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Any(key string, val interface{}) Field        { return zap.Any(key, val) }
func Error(err error) Field                        { return zap.Error(err) }
func Time(key string, val time.Time) Field         { return zap.Time(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

func (l *zapLogger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.zap.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.zap.Fatal(msg, fields...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{zap: l.zap.With(fields...)}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{zap: l.zap.Named(name)}
}

func (l *zapLogger) Sync() error { return l.zap.Sync() }
