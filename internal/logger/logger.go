package logger

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/rotation/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options describes the process logger of the rotation engine.
type Options struct {
	Level       string
	Format      string
	Service     string
	Environment string
	Version     string
	// Development trades sampling and JSON for console output and
	// stacktraces on warnings.
	Development bool
}

func OptionsFrom(cfg config.Config) Options {
	return Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Service:     cfg.AppName,
		Environment: cfg.Environment,
		Version:     cfg.AppVersion,
		Development: !cfg.IsProduction(),
	}
}

// New builds the process logger and installs it as the zap global.
func New(opts Options) (*zap.Logger, error) {
	cfg, stacktrace, err := opts.zapConfig()
	if err != nil {
		return nil, err
	}

	logger, err := cfg.Build(zap.AddStacktrace(stacktrace))
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}

func (o Options) zapConfig() (zap.Config, zapcore.Level, error) {
	cfg := zap.NewProductionConfig()
	stacktrace := zapcore.ErrorLevel
	format := FormatJSON
	if o.Development {
		cfg = zap.NewDevelopmentConfig()
		stacktrace = zapcore.WarnLevel
		format = FormatConsole
	}

	level := strings.ToLower(strings.TrimSpace(o.Level))
	if level == "" {
		level = "info"
	}
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return zap.Config{}, 0, fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}

	switch f := strings.ToLower(strings.TrimSpace(o.Format)); f {
	case "":
	case FormatJSON, FormatConsole:
		format = f
	default:
		return zap.Config{}, 0, fmt.Errorf("invalid log format %q", o.Format)
	}
	cfg.Encoding = format
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fields := map[string]interface{}{}
	for key, value := range map[string]string{
		"service": o.Service,
		"env":     o.Environment,
		"version": o.Version,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	if len(fields) > 0 {
		cfg.InitialFields = fields
	}
	return cfg, stacktrace, nil
}
