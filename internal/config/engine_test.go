package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/engine"
	"github.com/Veraticus/slipcheck/internal/ocr"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEngineConfig_Defaults(t *testing.T) {
	s, err := loadEngineConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, engine.DefaultConfig(), s.Engine)
	assert.Equal(t, "KHR", s.LocalCurrency)
	assert.Equal(t, DefaultDatabasePath(), s.DatabasePath)
	assert.False(t, s.OCREnabled())
	assert.Equal(t, ocr.DefaultTimeout, s.OCR.Timeout)
	assert.Zero(t, s.OCR.CacheTTL)
}

func TestLoadEngineConfig_Overrides(t *testing.T) {
	t.Setenv("SLIPCHECK_TEST_DIR", "/tmp/slipcheck-test")

	v := viper.New()
	v.Set("database.path", "$SLIPCHECK_TEST_DIR/db.sqlite")
	v.Set("verification.auto_approve_threshold", 0.9)
	v.Set("verification.review_threshold", 0.6)
	v.Set("verification.amount_tolerance_percent", 2.5)
	v.Set("verification.local_currency", "usd")
	v.Set("verification.ocr_timeout", "5s")
	v.Set("verification.workers", 16)
	v.Set("verification.retention_days", 30)
	v.Set("ocr.endpoint", "https://ocr.example.com/v1/extract")
	v.Set("ocr.api_key", "secret")
	v.Set("ocr.rate_limit", 120)
	v.Set("ocr.cache_ttl", "0s")

	s, err := loadEngineConfig(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/tmp/slipcheck-test", "db.sqlite"), s.DatabasePath)
	assert.InDelta(t, 0.9, s.Engine.AutoApproveThreshold, 1e-9)
	assert.InDelta(t, 0.6, s.Engine.ReviewThreshold, 1e-9)
	assert.InDelta(t, 0.85, s.Engine.BankSuccessThreshold, 1e-9)
	assert.InDelta(t, 2.5, s.Engine.AmountTolerancePercent, 1e-9)
	assert.Equal(t, "USD", s.LocalCurrency)
	assert.Equal(t, 5*time.Second, s.Engine.OCRTimeout)
	assert.Equal(t, 16, s.Engine.Workers)
	assert.Equal(t, 30, s.Engine.RetentionDays)

	assert.True(t, s.OCREnabled())
	assert.Equal(t, "secret", s.OCR.APIKey)
	assert.Equal(t, 120, s.OCR.RateLimit)
	assert.Equal(t, 5*time.Second, s.OCR.Timeout)
	assert.Negative(t, s.OCR.CacheTTL, "a zero ttl disables caching")
}

func TestLoadEngineConfig_Invalid(t *testing.T) {
	tests := []struct {
		values map[string]any
		name   string
	}{
		{name: "threshold above one", values: map[string]any{"verification.auto_approve_threshold": 1.2}},
		{name: "negative threshold", values: map[string]any{"verification.bank_success_threshold": -0.1}},
		{name: "review not below auto", values: map[string]any{"verification.review_threshold": 0.8}},
		{name: "tolerance out of range", values: map[string]any{"verification.amount_tolerance_percent": 150}},
		{name: "negative rate limit", values: map[string]any{"ocr.rate_limit": -1}},
		{name: "bad currency", values: map[string]any{"verification.local_currency": "riel"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.values {
				v.Set(k, val)
			}
			_, err := loadEngineConfig(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("SLIPCHECK_DATA", "/data")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: "/home/tester"},
		{in: "~/db.sqlite", want: "/home/tester/db.sqlite"},
		{in: "$SLIPCHECK_DATA/db.sqlite", want: "/data/db.sqlite"},
		{in: "/abs/path", want: "/abs/path"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
	assert.Equal(t, "/home/tester/.local/share/slipcheck/slipcheck.db", DefaultDatabasePath())
}
