package log

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the logger renders records.
type Options struct {
	Verbose bool // debug level instead of info
	JSON    bool // JSON lines instead of the console encoder
}

// New builds a logger writing to w. Logs go to stderr in the CLI so stdout
// stays reserved for reports.
func New(w io.Writer, opts Options) *zap.Logger {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		NameKey:        "logger",
		CallerKey:      "",
		StacktraceKey:  "",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	var encoder zapcore.Encoder
	if opts.JSON {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.ConsoleSeparator = "\t"
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core).Named("loadwatch")
}

// Nop returns a logger that drops everything. Used by tests and by library
// callers that do not care about logs.
func Nop() *zap.Logger {
	return zap.NewNop()
}
