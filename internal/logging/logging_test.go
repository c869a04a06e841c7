package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "defaults", config: DefaultConfig()},
		{name: "console format", config: Config{Level: "debug", Format: "console"}},
		{name: "bad level", config: Config{Level: "verbose", Format: "json"}, wantErr: true},
		{name: "bad format", config: Config{Level: "info", Format: "xml"}, wantErr: true},
		{name: "bad pattern", config: Config{Level: "info", Format: "json", Redaction: RedactionConfig{Enabled: true, Patterns: []string{"("}}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func encodeEntry(t *testing.T, enc zapcore.Encoder, fields ...zapcore.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Message: "test entry",
	}, fields)
	require.NoError(t, err)
	return buf.String()
}

func TestRedactingEncoderScrubsKeys(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, RedactionConfig{
		Enabled: true,
		Fields:  []string{"api_key"},
	})
	require.NoError(t, err)

	out := encodeEntry(t, enc, zap.String("api_key", "sk-secret-value"), zap.String("model", "gpt-4o-mini"))
	assert.Contains(t, out, `"api_key":"[REDACTED]"`)
	assert.NotContains(t, out, "sk-secret-value")
	assert.Contains(t, out, "gpt-4o-mini")
}

func TestRedactingEncoderScrubsPatterns(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, RedactionConfig{
		Enabled:  true,
		Patterns: []string{`\b\d{3}-\d{2}-\d{4}\b`},
	})
	require.NoError(t, err)

	out := encodeEntry(t, enc, zap.String("content", "my ssn is 123-45-6789"))
	assert.Contains(t, out, "[REDACTED:pattern]")
	assert.NotContains(t, out, "123-45-6789")
}

func TestRedactingEncoderDisabledPassesThrough(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, RedactionConfig{})
	require.NoError(t, err)

	out := encodeEntry(t, enc, zap.String("api_key", "visible"))
	assert.Contains(t, out, "visible")
}

func TestRedactingEncoderCloneKeepsRules(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, RedactionConfig{
		Enabled: true,
		Fields:  []string{"token"},
	})
	require.NoError(t, err)

	clone, ok := enc.Clone().(*RedactingEncoder)
	require.True(t, ok)

	out := encodeEntry(t, clone, zap.String("token", "abc123"))
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "abc123")
}
