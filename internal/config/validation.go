package config

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minSecretLength = 16

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}
	if err := c.Credits.validate(); err != nil {
		return err
	}
	if err := c.Payments.validate(); err != nil {
		return err
	}
	if err := c.Research.validate(); err != nil {
		return err
	}
	if err := c.RateLimit.validate(); err != nil {
		return err
	}
	return c.Notify.validate()
}

func (a *AppConfig) validate() error {
	if !strings.HasPrefix(a.APIPrefix, "/") {
		return fmt.Errorf("app.api_prefix must start with '/', got %q", a.APIPrefix)
	}
	switch a.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format only supports text|json, got %s", a.LogFormat)
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if strings.TrimSpace(d.Path) == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if d.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be >= 1")
	}
	return nil
}

func (a *AuthConfig) validate() error {
	if len(strings.TrimSpace(a.Secret)) < minSecretLength {
		return fmt.Errorf("auth.secret (or %s) must be at least %d characters", AuthSecretEnv, minSecretLength)
	}
	if a.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be > 0")
	}
	if a.BcryptCost < bcrypt.MinCost || a.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be in [%d,%d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

func (c *CreditsConfig) validate() error {
	if c.FreeTrial < 0 {
		return fmt.Errorf("credits.free_trial must be >= 0")
	}
	switch c.ChargeMode {
	case ChargeModeAtomic, ChargeModeLegacy:
		return nil
	default:
		return fmt.Errorf("credits.charge_mode only supports atomic|legacy, got %s", c.ChargeMode)
	}
}

func (p *PaymentsConfig) validate() error {
	if p.Gateway != "mock" {
		return fmt.Errorf("payments.gateway only supports 'mock', got %s", p.Gateway)
	}
	if p.PremiumCreditGrant < 0 {
		return fmt.Errorf("payments.premium_credit_grant must be >= 0")
	}
	if p.BreakerThreshold <= 0 || p.BreakerTimeoutSeconds <= 0 {
		return fmt.Errorf("payments breaker threshold and timeout must be > 0")
	}
	return nil
}

func (r *ResearchConfig) validate() error {
	if r.Analyzer != "mock" {
		return fmt.Errorf("research.analyzer only supports 'mock', got %s", r.Analyzer)
	}
	if r.MaxUploadBytes <= 0 {
		return fmt.Errorf("research.max_upload_bytes must be > 0")
	}
	return nil
}

func (r *RateLimitConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if r.RequestsPerSecond <= 0 || r.Burst <= 0 {
		return fmt.Errorf("rate_limit requires requests_per_second > 0 and burst > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
