package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"prism/internal/analysis"
	"prism/internal/config"
	"prism/internal/gateway/notifier"
	"prism/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{
			LogLevel:  "error",
			HTTPAddr:  "127.0.0.1:0",
			APIPrefix: "/api",
		},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "app.db"), MaxOpenConns: 2, BusyTimeoutMS: 5000},
		Auth:     config.AuthConfig{Secret: "app-test-secret-0123456789", Issuer: "prism", TokenTTLMinutes: 60, BcryptCost: 4},
		Credits:  config.CreditsConfig{FreeTrial: 3, ChargeMode: config.ChargeModeAtomic},
		Payments: config.PaymentsConfig{Gateway: "mock", BreakerThreshold: 5, BreakerTimeoutSeconds: 30},
		Research: config.ResearchConfig{Analyzer: "mock", MaxUploadBytes: 1 << 20, Seed: 1},
	}
}

func TestBuild_WiresServer(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewAppBuilder(cfg, WithNotifier(notifier.Nop{})).Build(context.Background())
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/research", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", gjson.Get(w.Body.String(), "status").String())

	assert.Equal(t, "atomic", a.Summary.Credits.ChargeMode)
	assert.Equal(t, "builtin", a.Summary.Templates.Source)
	assert.NotEmpty(t, a.Summary.Lines())
}

func TestBuild_RejectsUnknownGateway(t *testing.T) {
	cfg := testConfig(t)
	cfg.Payments.Gateway = "stripe"
	_, err := NewAppBuilder(cfg).Build(context.Background())
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := NewApp(testConfig(t))
	require.NoError(t, err)
	a.Summary = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestNewApp_NilConfig(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
}

func TestStartupSummary_PrintGoesToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)
	logger.SetLevel("info")

	cfg := testConfig(t)
	cfg.Credits.ChargeMode = config.ChargeModeLegacy
	newStartupSummary(cfg, analysisSnapshotForTest()).Print()

	out := buf.String()
	assert.Contains(t, out, "PRISM STARTUP SUMMARY")
	assert.Contains(t, out, "charge mode: legacy")
	assert.Contains(t, out, "source: static (v1)")
}

func analysisSnapshotForTest() analysis.Snapshot {
	return analysis.StaticTemplates(analysis.DefaultTemplates()).Snapshot()
}
