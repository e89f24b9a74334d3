package config

import "strings"

// Config is the root configuration for the PRISM backend.
type Config struct {
	App       AppConfig       `toml:"app"`
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	Credits   CreditsConfig   `toml:"credits"`
	Payments  PaymentsConfig  `toml:"payments"`
	Research  ResearchConfig  `toml:"research"`
	Analysis  AnalysisConfig  `toml:"analysis"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env          string `toml:"env"`
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"`
	HTTPAddr     string `toml:"http_addr"`
	APIPrefix    string `toml:"api_prefix"`
	LogPath      string `toml:"log_path"`
	AuditLogPath string `toml:"audit_log_path"`
	AuditDump    bool   `toml:"audit_dump_payload"`
}

// DatabaseConfig points at the SQLite file backing every table.
type DatabaseConfig struct {
	Path          string `toml:"path"`
	MaxOpenConns  int    `toml:"max_open_conns"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

// AuthConfig controls password hashing and bearer token issuance.
type AuthConfig struct {
	Secret          string `toml:"secret"`
	Issuer          string `toml:"issuer"`
	TokenTTLMinutes int    `toml:"token_ttl_minutes"`
	BcryptCost      int    `toml:"bcrypt_cost"`
}

// Charge modes for the credit gate.
const (
	ChargeModeAtomic = "atomic"
	ChargeModeLegacy = "legacy"
)

// CreditsConfig controls the analysis quota.
type CreditsConfig struct {
	FreeTrial  int    `toml:"free_trial"`
	ChargeMode string `toml:"charge_mode"` // "atomic" | "legacy"
}

// IsAtomic reports whether the decrement shares a transaction with the analysis.
func (c CreditsConfig) IsAtomic() bool {
	return normalizeChoice(c.ChargeMode) != ChargeModeLegacy
}

type PaymentsConfig struct {
	Gateway               string `toml:"gateway"`
	PremiumCreditGrant    int    `toml:"premium_credit_grant"`
	BreakerThreshold      int    `toml:"breaker_threshold"`
	BreakerTimeoutSeconds int    `toml:"breaker_timeout_seconds"`
}

type ResearchConfig struct {
	Analyzer       string `toml:"analyzer"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
	Seed           int64  `toml:"seed"` // 0 seeds from the clock
}

type AnalysisConfig struct {
	TemplatesPath string `toml:"templates_path"`
}

// RateLimitConfig throttles the credential endpoints per client IP.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet tracks the dotted paths explicitly present in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes how one field receives its default.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
