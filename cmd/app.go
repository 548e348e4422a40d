package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/config"
	"github.com/brifyai/pautapro/internal/document"
	"github.com/brifyai/pautapro/internal/extract"
	"github.com/brifyai/pautapro/internal/intent"
	"github.com/brifyai/pautapro/internal/monitoring"
	"github.com/brifyai/pautapro/internal/resilience"
	"github.com/brifyai/pautapro/internal/resolve"
	"github.com/brifyai/pautapro/internal/session"
	"github.com/brifyai/pautapro/internal/store"
)

// app is the wired order assistant shared by chat and serve.
type app struct {
	store    store.Store
	orch     *session.Orchestrator
	sessions *session.Manager
	registry *prometheus.Registry
	metrics  *monitoring.Metrics
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "pautapro.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

func resolverConfig(rc config.ResolverConfig) resolve.Config {
	rcfg := resolve.Config{
		SearchLimit: rc.SearchLimit,
		Retry: resilience.RetryConfig{
			Attempts: rc.ReadAttempts,
			Backoff:  time.Duration(rc.RetryBackoffMs) * time.Millisecond,
			Jitter:   0.2,
			OnRetry:  resilience.RetryLogger("resolve"),
		},
	}
	if rc.BreakerThreshold > 0 {
		rcfg.Breaker = resilience.NewBreaker(resilience.BreakerConfig{
			Threshold: rc.BreakerThreshold,
			Cooldown:  time.Duration(rc.BreakerCooldownSecs) * time.Second,
			OnStateChange: func(from, to resilience.BreakerState) {
				zap.L().Warn("resolve: breaker state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	return rcfg
}

// newApp wires every component over st from c. The caller owns st.
func newApp(st store.Store, c *config.Config) (*app, error) {
	lex := intent.DefaultLexicon()
	if c.Intent.LexiconPath != "" {
		l, err := intent.LoadLexicon(c.Intent.LexiconPath)
		if err != nil {
			return nil, err
		}
		lex = l
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	orch := session.NewOrchestrator(session.Deps{
		Extractor:  extract.New(),
		Classifier: intent.NewClassifier(lex),
		Resolver:   resolve.New(st, resolverConfig(c.Resolver)),
		Store:      st,
		Documents:  document.NewXLSXGenerator(c.Documents.OutputDir),
		Metrics:    metrics,
		Alerts:     monitoring.NewAlerter(c.Monitoring),
	}, session.Config{
		ResolveTimeout:  c.Session.ResolveTimeout(),
		CommitTimeout:   c.Session.CommitTimeout(),
		DocumentTimeout: c.Session.DocumentTimeout(),
	})

	return &app{
		store:    st,
		orch:     orch,
		sessions: session.NewManager(c.Session.IdleTimeout(), metrics),
		registry: reg,
		metrics:  metrics,
	}, nil
}

// openApp opens and migrates the configured store, then wires the app.
func openApp(ctx context.Context, c *config.Config) (*app, error) {
	st, err := initStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	a, err := newApp(st, c)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}
