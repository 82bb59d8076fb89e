package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/automation"
	"github.com/olvconsultores/stratevo/internal/insights"
	"github.com/olvconsultores/stratevo/internal/lifecycle"
	"github.com/olvconsultores/stratevo/internal/mailer"
	"github.com/olvconsultores/stratevo/internal/qualify"
	"github.com/olvconsultores/stratevo/internal/store"
	"github.com/olvconsultores/stratevo/pkg/anthropic"
	"github.com/olvconsultores/stratevo/pkg/brasilapi"
	sfpkg "github.com/olvconsultores/stratevo/pkg/salesforce"
)

// initStore opens the configured backend and applies pending migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initSalesforce() (sfpkg.Client, error) {
	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}
	return sfpkg.Connect(cfg.Salesforce.LoginURL, cfg.Salesforce.Username, cfg.Salesforce.ClientID, string(pemData))
}

func initRegistry() brasilapi.Client {
	return brasilapi.NewClient(
		brasilapi.WithBaseURL(cfg.Registry.BaseURL),
		brasilapi.WithRateLimit(cfg.Registry.RateLimit),
	)
}

func newMachine(st store.Store) *lifecycle.Machine {
	return lifecycle.New(st, lifecycle.Config{OpTimeout: cfg.Lifecycle.OpTimeout})
}

func newRunner(st store.Store, machine *lifecycle.Machine) *qualify.Runner {
	return qualify.NewRunner(st, machine, qualify.RunnerConfig{
		Weights:         cfg.Scoring.Weights,
		MaxConcurrency:  cfg.Qualification.MaxConcurrency,
		FreshnessWindow: cfg.Qualification.FreshnessWindow,
	})
}

func newEngine(st store.Store) (*automation.Engine, error) {
	sender, err := mailer.New(cfg.Email)
	if err != nil {
		return nil, eris.Wrap(err, "init mailer")
	}
	return automation.New(st, sender, cfg.Automation), nil
}

// newAnalyzer returns nil when no Anthropic key is configured; the call
// webhook is then not mounted.
func newAnalyzer(st store.Store) *insights.Analyzer {
	if cfg.Anthropic.Key == "" {
		zap.L().Info("anthropic key not set, call insights disabled")
		return nil
	}
	return insights.New(anthropic.NewClient(cfg.Anthropic.Key), st, insights.Config{
		Model:     cfg.Anthropic.HaikuModel,
		MaxTokens: cfg.Anthropic.MaxTokens,
	})
}
