// Package commands holds the pipehub CLI: source administration, dispatch,
// the job audit trail, and the HTTP server.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pipehub/internal/config"
	"pipehub/internal/modules"
	"pipehub/internal/monitoring"
	"pipehub/internal/pipeline"
	"pipehub/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "pipehub",
	Short:         "pipehub ingests external content through pluggable scraper modules and derives insight through pluggable analyzers.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the wired process: configuration, logger, store, and the two
// orchestrators with every built-in module registered.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	scraping *pipeline.ScrapingOrchestrator
	analysis *pipeline.AnalysisOrchestrator
	metrics  *monitoring.Metrics
	redis    *redis.Client
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	st, err := store.Open(driverName(cfg.DatabaseDriver), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: st}

	var locker pipeline.SourceLocker
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		locker = pipeline.NewRedisLocker(a.redis, cfg.LockTTL())
	} else {
		locker = pipeline.NewMemoryLocker()
	}

	a.metrics = monitoring.New(nil)
	a.scraping = pipeline.NewScrapingOrchestrator(locker, a.metrics, logger)
	a.analysis = pipeline.NewAnalysisOrchestrator(a.metrics, logger)
	modules.Register(a.scraping, a.analysis, modules.Options{
		UserAgent:      cfg.UserAgent,
		ScrapeTimeout:  cfg.ScrapeTimeout(),
		BrowserEnabled: cfg.BrowserEnabled,
		BrowserTimeout: cfg.BrowserTimeout(),
	})
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.store.Close()
	_ = a.logger.Sync()
}

func buildLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// driverName maps the configured driver tag to the database/sql driver
// registered by the imported packages.
func driverName(driver string) string {
	if driver == "postgres" || driver == "pgx" {
		return "pgx"
	}
	return "sqlite"
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
