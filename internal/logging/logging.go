// Package logging builds the process-wide zap logger.
//
// Log lines can carry free-form user text (chat content, hand-off metadata),
// so the encoder is wrapped with redaction rules that scrub known-sensitive
// keys and value patterns before anything hits the sink.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the logger.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is json or console.
	Format string
	// Redaction controls encoder-level scrubbing.
	Redaction RedactionConfig
}

// DefaultConfig returns production defaults: info-level JSON with redaction
// of the usual credential keys and US phone/SSN-shaped values.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Redaction: RedactionConfig{
			Enabled: true,
			Fields:  []string{"api_key", "token", "password", "authorization"},
			Patterns: []string{
				`\b\d{3}-\d{2}-\d{4}\b`,
				`(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`,
			},
		},
	}
}

// New builds a zap logger writing to stderr.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var base zapcore.Encoder
	switch cfg.Format {
	case "console":
		base = zapcore.NewConsoleEncoder(encoderCfg)
	case "json", "":
		base = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	encoder, err := NewRedactingEncoder(base, cfg.Redaction)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core), nil
}
