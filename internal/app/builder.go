package app

import (
	"context"
	"fmt"
	"time"

	"prism/internal/account"
	"prism/internal/analysis"
	"prism/internal/config"
	"prism/internal/decision"
	"prism/internal/gateway/notifier"
	"prism/internal/health"
	"prism/internal/logger"
	"prism/internal/metrics"
	"prism/internal/pkg/circuit"
	"prism/internal/research"
	"prism/internal/store/sqlite"
	"prism/internal/subscription"
	apihttp "prism/internal/transport/http/api"
)

type AppBuilder struct {
	cfg *config.Config

	storeFn    func(config.DatabaseConfig) (*sqlite.SqliteStore, error)
	gatewayFn  func(config.PaymentsConfig) (subscription.PaymentGateway, error)
	analyzerFn func(config.ResearchConfig) (research.VisionAnalyzer, error)
	notifierFn func(config.NotifyConfig) notifier.TextNotifier
}

type AppBuilderOption func(*AppBuilder)

// WithGateway replaces the configured payment gateway.
func WithGateway(gw subscription.PaymentGateway) AppBuilderOption {
	return func(b *AppBuilder) {
		b.gatewayFn = func(config.PaymentsConfig) (subscription.PaymentGateway, error) { return gw, nil }
	}
}

// WithNotifier replaces the configured text notifier.
func WithNotifier(n notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifierFn = func(config.NotifyConfig) notifier.TextNotifier { return n }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		storeFn:    openStore,
		gatewayFn:  buildGateway,
		analyzerFn: buildAnalyzer,
		notifierFn: newTelegram,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	st, err := b.storeFn(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err != nil {
			_ = st.Close()
		}
	}()
	logger.Infof("✓ database ready at %s", cfg.Database.Path)

	tokens, err := account.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}
	accounts, err := account.NewService(st, tokens, account.Options{
		FreeTrialCredits: cfg.Credits.FreeTrial,
		BcryptCost:       cfg.Auth.BcryptCost,
	})
	if err != nil {
		return nil, err
	}

	registry, err := analysis.NewRegistry(cfg.Analysis.TemplatesPath)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	decisions, err := decision.NewService(st, analysis.NewEngine(registry), m, decision.Options{ChargeMode: cfg.Credits.ChargeMode})
	if err != nil {
		return nil, err
	}

	gw, err := b.gatewayFn(cfg.Payments)
	if err != nil {
		return nil, err
	}
	breaker := circuit.NewCircuitBreaker("payments", cfg.Payments.BreakerThreshold, time.Duration(cfg.Payments.BreakerTimeoutSeconds)*time.Second)
	payments, err := subscription.NewService(st, subscription.WithBreaker(gw, breaker), b.notifierFn(cfg.Notify), m, subscription.Options{
		PremiumCreditGrant: cfg.Payments.PremiumCreditGrant,
	})
	if err != nil {
		return nil, err
	}

	analyzer, err := b.analyzerFn(cfg.Research)
	if err != nil {
		return nil, err
	}
	researchSvc, err := research.NewService(analyzer, m, cfg.Research.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	sqlDB, err := st.SQLDB()
	if err != nil {
		return nil, err
	}
	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		APIPrefix: cfg.App.APIPrefix,
		Accounts:  accounts,
		Decisions: decisions,
		Payments:  payments,
		Research:  researchSvc,
		Health:    health.NewChecker(sqlDB, 2*time.Second),
		Metrics:   m,
		RateLimit: apihttp.RateLimit{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		store:    st,
		server:   server,
		payments: payments,
		Summary:  newStartupSummary(cfg, registry.Snapshot()),
	}, nil
}

func openStore(cfg config.DatabaseConfig) (*sqlite.SqliteStore, error) {
	return sqlite.NewSqliteStore(sqlite.Options{
		Path:          cfg.Path,
		MaxOpenConns:  cfg.MaxOpenConns,
		BusyTimeoutMS: cfg.BusyTimeoutMS,
	})
}

func buildGateway(cfg config.PaymentsConfig) (subscription.PaymentGateway, error) {
	return subscription.NewGateway(cfg.Gateway)
}

func buildAnalyzer(cfg config.ResearchConfig) (research.VisionAnalyzer, error) {
	return research.NewAnalyzer(cfg.Analyzer, cfg.Seed)
}

func newTelegram(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return notifier.Nop{}
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}
