package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rental-scout/config"
	"rental-scout/scraper"
	"rental-scout/services"
	"rental-scout/session"
	"rental-scout/storage"
	"rental-scout/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rental-scout",
		Short:        "Search rental listings across several French catalogs",
		SilenceUsage: true,
	}

	cobra.OnInitialize(func() { config.Init(viper.GetViper()) })

	flags := root.PersistentFlags()
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("db-driver", "", "database driver (sqlite, postgres)")
	flags.String("fetch-mode", "", "fetch mode (http, browser)")
	_ = viper.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))
	_ = viper.BindPFlag("DB_DRIVER", flags.Lookup("db-driver"))
	_ = viper.BindPFlag("FETCH_MODE", flags.Lookup("fetch-mode"))

	root.AddCommand(
		newSearchCmd(),
		newChatCmd(),
		newCleanupCmd(),
		newAlertsCmd(),
		newServeCmd(),
	)
	return root
}

// app holds the wired core for the lifetime of one command.
type app struct {
	cfg          *config.Config
	logger       *utils.Logger
	store        *storage.SQLStore
	sessions     *session.Store
	coordinator  *services.Coordinator
	conversation *services.Conversation
	closers      []func()
}

func newApp() (*app, error) {
	cfg := config.FromViper(viper.GetViper())
	logger := utils.NewLogger(cfg.LogLevel)

	logger.Info("rental-scout starting",
		"db", cfg.DBDriver,
		"fetch_mode", cfg.FetchMode,
		"sources", len(cfg.Sources),
		"max_concurrent", cfg.MaxConcurrent,
		"timeout", cfg.FetchTimeout)

	if cfg.DBDriver == storage.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := storage.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		if cfg.DBDriver == storage.DriverPostgres {
			logger.Error("Failed to connect to PostgreSQL", err)
			logger.Warn("Make sure Docker is running: docker compose up -d")
		}
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store}
	a.closers = append(a.closers, func() { _ = store.Close() })

	fetcher, err := a.newFetcher()
	if err != nil {
		a.Close()
		return nil, err
	}

	var sources []services.Source
	for _, base := range cfg.Sources {
		ad, err := scraper.NewAdapter(scraper.AdapterConfig{
			BaseURL:    base,
			Timeout:    cfg.FetchTimeout,
			MaxResults: cfg.MaxResultsPerQuery,
		}, fetcher, logger)
		if err != nil {
			logger.Error("skipping source", err, "base_url", base)
			continue
		}
		sources = append(sources, ad)
	}
	if len(sources) == 0 {
		a.Close()
		return nil, fmt.Errorf("no usable source configured")
	}

	a.coordinator = services.NewCoordinator(sources, services.CoordinatorConfig{
		MaxSourcesPerSearch: cfg.MaxSourcesPerSearch,
		MaxResults:          cfg.MaxResultsPerQuery,
		MaxConcurrent:       cfg.MaxConcurrent,
		Retry: utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   cfg.RetryBaseDelay,
		},
	}, logger)
	a.sessions = session.NewStore(store, cfg.SessionTTL, logger)
	a.conversation = services.NewConversation(a.sessions, store, store, a.coordinator, logger)
	return a, nil
}

func (a *app) newFetcher() (scraper.Fetcher, error) {
	switch a.cfg.FetchMode {
	case "", "http":
		return scraper.NewHTTPFetcher(&http.Client{}, a.cfg.UserAgent), nil
	case "browser":
		bf := scraper.NewBrowserFetcher(a.cfg.ChromeBin, a.cfg.UserAgent)
		a.closers = append(a.closers, bf.Close)
		return bf, nil
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", a.cfg.FetchMode)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
