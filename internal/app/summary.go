package app

import (
	"fmt"
	"strings"

	"prism/internal/analysis"
	"prism/internal/config"
	"prism/internal/logger"
)

type StartupSummary struct {
	HTTP      HTTPSummary
	Database  string
	Credits   CreditSummary
	Payments  PaymentSummary
	Templates TemplateSummary
}

type HTTPSummary struct {
	Addr      string
	APIPrefix string
	RateLimit string
}

type CreditSummary struct {
	FreeTrial  int
	ChargeMode string
}

type PaymentSummary struct {
	Gateway     string
	CreditGrant int
	Telegram    bool
}

type TemplateSummary struct {
	Source  string
	Version int64
}

func newStartupSummary(cfg *config.Config, snap analysis.Snapshot) *StartupSummary {
	rate := "off"
	if cfg.RateLimit.Enabled {
		rate = fmt.Sprintf("%.2f rps, burst %d", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	mode := config.ChargeModeAtomic
	if !cfg.Credits.IsAtomic() {
		mode = config.ChargeModeLegacy
	}
	return &StartupSummary{
		HTTP: HTTPSummary{
			Addr:      cfg.App.HTTPAddr,
			APIPrefix: cfg.App.APIPrefix,
			RateLimit: rate,
		},
		Database: cfg.Database.Path,
		Credits:  CreditSummary{FreeTrial: cfg.Credits.FreeTrial, ChargeMode: mode},
		Payments: PaymentSummary{
			Gateway:     cfg.Payments.Gateway,
			CreditGrant: cfg.Payments.PremiumCreditGrant,
			Telegram:    cfg.Notify.Telegram.Enabled,
		},
		Templates: TemplateSummary{Source: snap.Source, Version: snap.Version},
	}
}

// Lines renders the summary body, one setting per line.
func (s *StartupSummary) Lines() []string {
	return []string{
		"[HTTP]",
		fmt.Sprintf("  listen: %s (prefix %s)", s.HTTP.Addr, s.HTTP.APIPrefix),
		fmt.Sprintf("  auth rate limit: %s", s.HTTP.RateLimit),
		"[STORAGE]",
		fmt.Sprintf("  sqlite: %s", s.Database),
		"[CREDITS]",
		fmt.Sprintf("  free trial: %d", s.Credits.FreeTrial),
		fmt.Sprintf("  charge mode: %s", s.Credits.ChargeMode),
		"[PAYMENTS]",
		fmt.Sprintf("  gateway: %s", s.Payments.Gateway),
		fmt.Sprintf("  premium credit grant: %d", s.Payments.CreditGrant),
		fmt.Sprintf("  telegram: %t", s.Payments.Telegram),
		"[ANALYSIS TEMPLATES]",
		fmt.Sprintf("  source: %s (v%d)", s.Templates.Source, s.Templates.Version),
	}
}

// Print logs the summary through the package logger so it lands in app.log_path.
func (s *StartupSummary) Print() {
	rule := strings.Repeat("=", 60)
	block := append([]string{rule, "PRISM STARTUP SUMMARY", rule}, s.Lines()...)
	logger.InfoBlock(strings.Join(append(block, rule), "\n"))
}
