package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/priceagg/engine/internal/aggregate"
	"github.com/priceagg/engine/internal/collector"
	"github.com/priceagg/engine/internal/config"
	"github.com/priceagg/engine/internal/httpapi"
	"github.com/priceagg/engine/internal/metrics"
	"github.com/priceagg/engine/internal/obs"
	"github.com/priceagg/engine/internal/query"
	"github.com/priceagg/engine/internal/resilience"
	"github.com/priceagg/engine/internal/source"
)

const (
	appName = "priceagg"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Multi-source crypto price aggregation engine",
		Version: version,
		Long: `priceagg collects price and volume observations for configured pairs
from several sources, filters outliers, and reports VWAP, TWAP and
source-weighted-mean aggregates through a confidence-ranked best-price
selector.

'priceagg run' is the long-running service; 'priceagg price' and
'priceagg config validate' are one-shot operator utilities.`,
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML file (defaults built in if omitted)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the collector scheduler and the metrics/health HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(configPath)
		},
	}

	priceCmd := &cobra.Command{
		Use:   "price <pair>",
		Short: "One-shot price query against a freshly-started collector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShotPrice(configPath, args[0])
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Config file utilities",
	}
	validateCmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Load and validate a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	configCmd.AddCommand(validateCmd)

	rootCmd.AddCommand(runCmd, priceCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("priceagg exited with error")
		os.Exit(1)
	}
}

func loadConfigOrDefault(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildSources constructs the enabled Source implementations and their
// resilience managers from cfg, wiring each source's token mapping,
// rate limit and daily budget.
func buildSources(cfg config.Config) (map[string]source.Source, *resilience.BreakerManager, *resilience.LimiterManager, *resilience.BudgetManager) {
	sources := make(map[string]source.Source)
	breakers := resilience.NewBreakerManager(resilience.DefaultBreakerConfig())
	limiters := resilience.NewLimiterManager()
	budgets := resilience.NewBudgetManager()

	timeout := time.Duration(cfg.Collector.RequestTimeoutMs) * time.Millisecond

	symbolsFor := func(venue string) map[string]string {
		m := make(map[string]string)
		for pair, mapping := range cfg.Collector.TokenMappings {
			if sym, ok := mapping[venue]; ok {
				m[pair] = sym
			}
		}
		return m
	}

	for name, sc := range cfg.Collector.Sources {
		if !sc.Enabled {
			continue
		}

		switch name {
		case "okx":
			sources[name] = source.NewOKXSource(timeout, symbolsFor("okx"))
		case "binance":
			sources[name] = source.NewBinanceSource(timeout, symbolsFor("binance"))
		case "coinbase":
			sources[name] = source.NewCoinbaseSource(timeout, symbolsFor("coinbase"))
		case "raydium":
			sources[name] = source.NewRaydiumSource(timeout, symbolsFor("raydium"))
		case "orca":
			sources[name] = source.NewOrcaSource(timeout, symbolsFor("orca"))
		case "mock":
			sources[name] = source.NewSyntheticSource(name, 100, 2, time.Minute, 1000)
		default:
			continue
		}

		limiters.AddSource(name, resilience.LimiterConfig{RPS: sc.RPS, Burst: sc.Burst})
		budgets.AddSource(name, sc.DailyBudget, 0)
	}

	return sources, breakers, limiters, budgets
}

func runService(configPath string) error {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}

	store := obs.NewStore(time.Duration(cfg.Aggregation.MaxAgeMs)*time.Millisecond, cfg.Aggregation.MaxHistorySize, cfg.Aggregation.MinVolume, cfg.Aggregation.SourceWeights)

	sources, breakers, limiters, budgets := buildSources(cfg)

	reg := prometheus.NewRegistry()
	metricsReg := metrics.NewRegistry(reg)

	sched := collector.NewScheduler(cfg.CollectorRuntimeConfig(), store, sources, breakers, limiters, budgets, log.Logger).
		WithRecorder(metricsReg)

	httpSrv := &http.Server{
		Addr:    cfg.Metrics.ListenAddr,
		Handler: httpapi.NewServer(sched, breakers, cfg.EnabledSources(), reg),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.Metrics.ListenAddr).Msg("serving metrics and health endpoints")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Strs("pairs", cfg.Collector.Pairs).Msg("starting collector scheduler")
	return sched.Start(ctx)
}

func runOneShotPrice(configPath, pair string) error {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}

	store := obs.NewStore(time.Duration(cfg.Aggregation.MaxAgeMs)*time.Millisecond, cfg.Aggregation.MaxHistorySize, cfg.Aggregation.MinVolume, cfg.Aggregation.SourceWeights)

	reg := prometheus.NewRegistry()
	metricsReg := metrics.NewRegistry(reg)

	engine := aggregate.NewEngine(cfg.AggregateConfig(), log.Logger).WithRecorder(metricsReg)
	facade := query.New(store, engine)

	sources, breakers, limiters, budgets := buildSources(cfg)
	collectorCfg := cfg.CollectorRuntimeConfig()
	collectorCfg.Pairs = []string{pair}
	sched := collector.NewScheduler(collectorCfg, store, sources, breakers, limiters, budgets, log.Logger).
		WithRecorder(metricsReg)
	facade.WithScheduler(sched)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sched.RunTick(ctx)

	result, err := facade.CurrentPrice(pair, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("%s: %.6f (algo=%s confidence=%.3f n=%d)\n", pair, result.Price, result.Algorithm, result.Confidence, result.SampleSize)
	return nil
}
