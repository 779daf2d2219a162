package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/NAMEAMITSONI/authopsy/internal/config"
	"github.com/NAMEAMITSONI/authopsy/pkg/types"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap sugared logger with scanner-specific helpers. Log
// records are teed into an otelzap core so they carry over to an OTLP
// pipeline when one is configured in the host process.
type Logger struct {
	*zap.SugaredLogger
	otelCore   *otelzap.Core
	baseLogger *zap.Logger
}

func New(cfg config.LoggerConfig) (*Logger, error) {
	var zapConfig zap.Config

	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	}

	levelStr := cfg.Level
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	if len(cfg.OutputPaths) > 0 {
		zapConfig.OutputPaths = cfg.OutputPaths
	}

	zapConfig.InitialFields = map[string]interface{}{
		"service": "authopsy",
	}

	baseLogger, err := zapConfig.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	otelCore := otelzap.NewCore("authopsy",
		otelzap.WithAttributes(
			attribute.String("service", "authopsy"),
		),
	)

	core := zapcore.NewTee(baseLogger.Core(), otelCore)
	enhanced := zap.New(core, zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{
		SugaredLogger: enhanced.Sugar(),
		otelCore:      otelCore,
		baseLogger:    enhanced,
	}, nil
}

func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.With(fields...),
		otelCore:      l.otelCore,
		baseLogger:    l.baseLogger,
	}
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

func (l *Logger) WithScanID(scanID string) *Logger {
	return l.WithFields("scan_id", scanID)
}

func (l *Logger) WithTarget(target string) *Logger {
	return l.WithFields("target", target)
}

// LogHTTPRequest records a completed probe request at a level matched to
// the response class.
func (l *Logger) LogHTTPRequest(method, url string, statusCode int, duration time.Duration, fields ...interface{}) {
	allFields := []interface{}{
		"http_method", method,
		"http_url", url,
		"http_status", statusCode,
		"duration_ms", duration.Milliseconds(),
	}
	allFields = append(allFields, fields...)

	switch {
	case statusCode >= 500:
		l.Errorw("HTTP request completed", allFields...)
	case statusCode >= 400:
		l.Debugw("HTTP request completed", allFields...)
	default:
		l.Debugw("HTTP request completed", allFields...)
	}
}

// LogFinding records a classified finding; classified defects log at warn,
// positive/diagnostic results at debug.
func (l *Logger) LogFinding(f types.Finding) {
	fields := []interface{}{
		"rule", f.Rule,
		"severity", string(f.Severity),
		"endpoint", f.Endpoint,
	}

	switch f.Severity {
	case types.SeverityCritical, types.SeverityHigh:
		l.Warnw("Finding detected", fields...)
	case types.SeverityMedium, types.SeverityLow:
		l.Infow("Finding detected", fields...)
	default:
		l.Debugw("Finding recorded", fields...)
	}
}

type contextKey struct{}

var loggerKey = contextKey{}

func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}
	// Absent a contextual logger the fallback stays quiet below error.
	logger, _ := New(config.LoggerConfig{Level: "error", Format: "json"})
	return logger
}

func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}
