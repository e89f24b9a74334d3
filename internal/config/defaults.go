package config

import "strings"

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppHTTPAddr       = ":8000"
	defaultAppAPIPrefix      = "/api"
	defaultDatabasePath      = "data/prism.db"
	defaultDatabaseMaxOpen   = 2
	defaultDatabaseBusyMS    = 5000
	defaultAuthIssuer        = "prism"
	defaultAuthTokenTTL      = 60 * 24
	defaultAuthBcryptCost    = 10
	defaultCreditsFreeTrial  = 3
	defaultCreditsChargeMode = ChargeModeAtomic
	defaultPaymentsGateway   = "mock"
	defaultBreakerThreshold  = 5
	defaultBreakerTimeout    = 30
	defaultResearchAnalyzer  = "mock"
	defaultResearchMaxUpload = 10 << 20
	defaultRateLimitRPS      = 5
	defaultRateLimitBurst    = 10

	// AuthSecretEnv overrides auth.secret.
	AuthSecretEnv = EnvPrefix + "_AUTH_SECRET"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Database.applyDefaults(keys)
	c.Auth.applyDefaults(keys)
	c.Credits.applyDefaults(keys)
	c.Payments.applyDefaults(keys)
	c.Research.applyDefaults(keys)
	c.RateLimit.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.api_prefix", &a.APIPrefix, defaultAppAPIPrefix),
	)
	a.LogLevel = normalizeChoice(a.LogLevel)
	a.LogFormat = normalizeChoice(a.LogFormat)
}

func (d *DatabaseConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("database.path", &d.Path, defaultDatabasePath),
		intFieldDefault("database.max_open_conns", &d.MaxOpenConns, defaultDatabaseMaxOpen),
		intFieldDefault("database.busy_timeout_ms", &d.BusyTimeoutMS, defaultDatabaseBusyMS),
	)
}

func (a *AuthConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("auth.issuer", &a.Issuer, defaultAuthIssuer),
		intFieldDefault("auth.token_ttl_minutes", &a.TokenTTLMinutes, defaultAuthTokenTTL),
		intFieldDefault("auth.bcrypt_cost", &a.BcryptCost, defaultAuthBcryptCost),
	)
	a.Secret = strings.TrimSpace(a.Secret)
}

func (c *CreditsConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("credits.free_trial", &c.FreeTrial, defaultCreditsFreeTrial),
		stringFieldDefault("credits.charge_mode", &c.ChargeMode, defaultCreditsChargeMode),
	)
	c.ChargeMode = normalizeChoice(c.ChargeMode)
}

func (p *PaymentsConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("payments.gateway", &p.Gateway, defaultPaymentsGateway),
		intFieldDefault("payments.breaker_threshold", &p.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("payments.breaker_timeout_seconds", &p.BreakerTimeoutSeconds, defaultBreakerTimeout),
	)
	p.Gateway = normalizeChoice(p.Gateway)
}

func (r *ResearchConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("research.analyzer", &r.Analyzer, defaultResearchAnalyzer),
		fieldDefault{
			key:   "research.max_upload_bytes",
			need:  func() bool { return r.MaxUploadBytes <= 0 },
			apply: func() { r.MaxUploadBytes = defaultResearchMaxUpload },
		},
	)
	r.Analyzer = normalizeChoice(r.Analyzer)
}

func (r *RateLimitConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("rate_limit.enabled", &r.Enabled, true),
		fieldDefault{
			key:   "rate_limit.requests_per_second",
			need:  func() bool { return r.RequestsPerSecond <= 0 },
			apply: func() { r.RequestsPerSecond = defaultRateLimitRPS },
		},
		intFieldDefault("rate_limit.burst", &r.Burst, defaultRateLimitBurst),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

// normalizeChoice lower-cases enum-like settings so validation and the
// factories that switch on them see one spelling.
func normalizeChoice(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
