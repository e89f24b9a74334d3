package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
auth:
  secret: "0123456789abcdef0123"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.App.HTTPAddr)
	assert.Equal(t, "/api", cfg.App.APIPrefix)
	assert.Equal(t, 3, cfg.Credits.FreeTrial)
	assert.True(t, cfg.Credits.IsAtomic())
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, int64(10<<20), cfg.Research.MaxUploadBytes)
}

func TestLoad_ExplicitZeroIsKept(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
auth:
  secret: "0123456789abcdef0123"
credits:
  free_trial: 0
  charge_mode: legacy
rate_limit:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Credits.FreeTrial)
	assert.False(t, cfg.Credits.IsAtomic())
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoad_MergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
app:
  http_addr: ":9000"
auth:
  secret: "0123456789abcdef0123"
`)
	path := writeFile(t, dir, "config.yaml", `
include:
  - base.yaml
app:
  log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.App.HTTPAddr)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestLoad_SecretFromEnv(t *testing.T) {
	t.Setenv(AuthSecretEnv, "env-secret-0123456789")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "app:\n  env: test\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret-0123456789", cfg.Auth.Secret)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PRISM_AUTH_SECRET", "env-secret-0123456789")
	t.Setenv("PRISM_CREDITS_FREE_TRIAL", "7")
	t.Setenv("PRISM_RATE_LIMIT_ENABLED", "false")
	t.Setenv("PRISM_APP_HTTP_ADDR", ":9100")
	path := writeFile(t, t.TempDir(), "config.yaml", `
auth:
  secret: "file-secret-0123456789"
credits:
  free_trial: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret-0123456789", cfg.Auth.Secret)
	assert.Equal(t, 7, cfg.Credits.FreeTrial)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, ":9100", cfg.App.HTTPAddr)
	// Unset variables leave defaults in place.
	assert.Equal(t, "/api", cfg.App.APIPrefix)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
}

func TestLoad_EnvZeroCountsAsSet(t *testing.T) {
	t.Setenv("PRISM_CREDITS_FREE_TRIAL", "0")
	path := writeFile(t, t.TempDir(), "config.yaml", "auth:\n  secret: \"0123456789abcdef0123\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Credits.FreeTrial)
}

func TestLoad_NormalizesChoices(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
app:
  log_format: JSON
auth:
  secret: "0123456789abcdef0123"
credits:
  charge_mode: " Legacy "
payments:
  gateway: MOCK
research:
  analyzer: Mock
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.App.LogFormat)
	assert.Equal(t, ChargeModeLegacy, cfg.Credits.ChargeMode)
	assert.False(t, cfg.Credits.IsAtomic())
	assert.Equal(t, "mock", cfg.Payments.Gateway)
	assert.Equal(t, "mock", cfg.Research.Analyzer)
}

func TestConfigKeys_CoversNestedSections(t *testing.T) {
	keys := configKeys(reflect.TypeOf(Config{}), "")
	assert.Contains(t, keys, "auth.secret")
	assert.Contains(t, keys, "notify.telegram.bot_token")
	assert.Contains(t, keys, "rate_limit.requests_per_second")
	assert.NotContains(t, keys, "notify.telegram")
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"short secret": "auth:\n  secret: short\n",
		"charge mode":  "auth:\n  secret: \"0123456789abcdef0123\"\ncredits:\n  charge_mode: lazy\n",
		"gateway":      "auth:\n  secret: \"0123456789abcdef0123\"\npayments:\n  gateway: stripe\n",
		"telegram":     "auth:\n  secret: \"0123456789abcdef0123\"\nnotify:\n  telegram:\n    enabled: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(AuthSecretEnv, "")
			path := writeFile(t, t.TempDir(), "config.yaml", body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "include cycle")
}
