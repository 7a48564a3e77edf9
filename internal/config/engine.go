package config

import (
	"fmt"
	"strings"

	"github.com/Veraticus/slipcheck/internal/bankformat"
	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/engine"
	"github.com/Veraticus/slipcheck/internal/ocr"
	"github.com/spf13/viper"
)

// Settings is everything the CLI needs to assemble a coordinator.
type Settings struct {
	DatabasePath  string
	LocalCurrency string
	OCR           ocr.Config
	Engine        engine.Config
}

// OCREnabled reports whether an OCR endpoint is configured.
func (s Settings) OCREnabled() bool {
	return strings.TrimSpace(s.OCR.Endpoint) != ""
}

// LoadEngineConfig reads settings from viper on top of the engine defaults.
// Keys:
//
//	database.path
//	verification.auto_approve_threshold, verification.review_threshold,
//	verification.bank_success_threshold, verification.amount_tolerance_percent,
//	verification.local_currency, verification.ocr_timeout,
//	verification.workers, verification.retention_days
//	ocr.endpoint, ocr.api_key, ocr.model, ocr.rate_limit, ocr.cache_ttl
func LoadEngineConfig() (*Settings, error) {
	return loadEngineConfig(viper.GetViper())
}

func loadEngineConfig(v *viper.Viper) (*Settings, error) {
	cfg := engine.DefaultConfig()
	s := &Settings{
		DatabasePath:  DefaultDatabasePath(),
		LocalCurrency: bankformat.DefaultLocalCurrency,
	}

	if p := v.GetString("database.path"); p != "" {
		s.DatabasePath = ExpandPath(p)
	}
	if c := v.GetString("verification.local_currency"); c != "" {
		s.LocalCurrency = strings.ToUpper(strings.TrimSpace(c))
	}

	if v.IsSet("verification.auto_approve_threshold") {
		cfg.AutoApproveThreshold = v.GetFloat64("verification.auto_approve_threshold")
	}
	if v.IsSet("verification.review_threshold") {
		cfg.ReviewThreshold = v.GetFloat64("verification.review_threshold")
	}
	if v.IsSet("verification.bank_success_threshold") {
		cfg.BankSuccessThreshold = v.GetFloat64("verification.bank_success_threshold")
	}
	if v.IsSet("verification.amount_tolerance_percent") {
		cfg.AmountTolerancePercent = v.GetFloat64("verification.amount_tolerance_percent")
	}
	if d := v.GetDuration("verification.ocr_timeout"); d > 0 {
		cfg.OCRTimeout = d
	}
	if n := v.GetInt("verification.workers"); n > 0 {
		cfg.Workers = n
	}
	if n := v.GetInt("verification.retention_days"); n > 0 {
		cfg.RetentionDays = n
	}
	s.Engine = cfg

	s.OCR = ocr.Config{
		Endpoint:  v.GetString("ocr.endpoint"),
		APIKey:    v.GetString("ocr.api_key"),
		Model:     v.GetString("ocr.model"),
		Timeout:   cfg.OCRTimeout,
		RateLimit: v.GetInt("ocr.rate_limit"),
	}
	if v.IsSet("ocr.cache_ttl") {
		s.OCR.CacheTTL = v.GetDuration("ocr.cache_ttl")
		if s.OCR.CacheTTL == 0 {
			s.OCR.CacheTTL = -1
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects thresholds that would make classification meaningless.
func (s *Settings) Validate() error {
	e := s.Engine
	for name, value := range map[string]float64{
		"auto_approve_threshold": e.AutoApproveThreshold,
		"review_threshold":       e.ReviewThreshold,
		"bank_success_threshold": e.BankSuccessThreshold,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%w: verification.%s must be within [0,1], got %v", common.ErrInvalidConfig, name, value)
		}
	}
	if e.ReviewThreshold >= e.AutoApproveThreshold {
		return fmt.Errorf("%w: verification.review_threshold (%v) must be below auto_approve_threshold (%v)",
			common.ErrInvalidConfig, e.ReviewThreshold, e.AutoApproveThreshold)
	}
	if e.AmountTolerancePercent < 0 || e.AmountTolerancePercent >= 100 {
		return fmt.Errorf("%w: verification.amount_tolerance_percent must be within [0,100), got %v",
			common.ErrInvalidConfig, e.AmountTolerancePercent)
	}
	if s.OCR.RateLimit < 0 {
		return fmt.Errorf("%w: ocr.rate_limit must not be negative", common.ErrInvalidConfig)
	}
	if len(s.LocalCurrency) != 3 {
		return fmt.Errorf("%w: verification.local_currency must be an ISO code, got %q", common.ErrInvalidConfig, s.LocalCurrency)
	}
	return nil
}
