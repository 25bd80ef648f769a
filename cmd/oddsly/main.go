// Package main provides the entry point for the Oddsly decision engine.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Temian1/oddsly/internal/config"
	"github.com/Temian1/oddsly/internal/database"
	"github.com/Temian1/oddsly/internal/datasource"
	"github.com/Temian1/oddsly/internal/engine"
	"github.com/Temian1/oddsly/internal/health"
	"github.com/Temian1/oddsly/internal/logger"
	"github.com/Temian1/oddsly/internal/metrics"
	"github.com/Temian1/oddsly/internal/repository"
	"github.com/Temian1/oddsly/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	appLog     *logrus.Logger
	cfg        *config.Config
	db         *database.DB
	store      repository.PropStore
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(recalculateCmd)
	rootCmd.AddCommand(evaluateCmd)
}

var rootCmd = &cobra.Command{
	Use:   "oddsly",
	Short: "Expected-value decision engine for player-prop wagers",
	Long:  `Aggregates historical prop outcomes into hit-rate estimates and turns them into EV and Kelly staking recommendations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return setupDependencies(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}

	// Load AWS secrets if enabled
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	// Bad thresholds are fatal before any scheduling begins.
	return config.Validate(cfg)
}

func setupDependencies(ctx context.Context) error {
	appLog = logger.NewLogger(cfg.App.LogLevel)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     Version,
	}).Info("Oddsly decision engine starting")

	if cfg.UsesDatabase() {
		var err error
		db, err = database.Initialize(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		store = repository.NewPostgresPropStore(db)
		appLog.Info("Database connection established")
	} else {
		store = repository.NewMemoryPropStore()
		appLog.Warn("No database configured, using in-memory store")
	}

	return nil
}

// buildEngine wires the estimator pipeline from configuration.
func buildEngine() (*engine.HistoricalAggregator, *engine.Evaluator) {
	aggregator := engine.NewHistoricalAggregator(
		store,
		cfg.Engine.LookbackDays,
		cfg.Engine.MinSampleSize,
		time.Duration(cfg.Engine.CacheTTLSeconds)*time.Second,
		appLog,
	)

	ev := engine.NewEVCalculator(cfg.Engine.EVThreshold, appLog)
	kelly := engine.NewKellyStaking(cfg.Engine.MaxBetFraction, cfg.Engine.MinBetAmount, appLog)
	evaluator := engine.NewEvaluator(aggregator, ev, kelly, appLog)

	return aggregator, evaluator
}

func buildScheduler(aggregator *engine.HistoricalAggregator) *scheduler.RefreshScheduler {
	httpCfg := datasource.DefaultHTTPClientConfig()
	httpCfg.Timeout = cfg.OddsAPITimeout()
	httpCfg.MaxRetries = cfg.OddsAPI.MaxRetries
	httpCfg.RateLimit = cfg.OddsAPI.RateLimitPerSecond

	httpClient := datasource.NewRateLimitedHTTPClient(httpCfg, appLog)
	fetcher := datasource.NewOddsAPIClient(httpClient, cfg.OddsAPI.BaseURL, cfg.OddsAPI.APIKey, true, appLog)

	return scheduler.NewRefreshScheduler(fetcher, aggregator, cfg.Refresh, appLog)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the refresh scheduler with health and metrics endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		aggregator, _ := buildEngine()
		sched := buildScheduler(aggregator)

		healthServer := health.NewServer(health.Config{
			ServiceName: cfg.App.Name,
			Version:     Version,
			Port:        cfg.Health.Port,
			Logger:      appLog,
			Store:       store,
			Status:      sched,
		})
		if err := healthServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}

		if cfg.Metrics.Enabled {
			go func() {
				mux := http.NewServeMux()
				mux.Handle(cfg.Metrics.Path, metrics.Handler())
				addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
				appLog.WithField("addr", addr).Info("Metrics server starting")
				if err := http.ListenAndServe(addr, mux); err != nil {
					appLog.WithError(err).Error("Metrics server error")
				}
			}()
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		healthServer.SetReady(true)

		// Wait for shutdown signal
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan

		appLog.WithField("signal", sig.String()).Info("Shutting down")
		healthServer.SetReady(false)

		if err := sched.Stop(); err != nil {
			appLog.WithError(err).Warn("Scheduler did not stop cleanly")
		}

		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a single refresh cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		aggregator, _ := buildEngine()
		sched := buildScheduler(aggregator)

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RefreshInterval())
		defer cancel()

		sched.RefreshNow(ctx)

		status := sched.GetStatus()
		appLog.WithFields(logrus.Fields{
			"record_counts": status.RecordCounts,
			"error_count":   status.ErrorCount,
		}).Info("Refresh complete")

		return nil
	},
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Recompute every stored hit-rate estimate from raw outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		aggregator, _ := buildEngine()

		recomputed, failures := aggregator.RecalculateAll(cmd.Context())

		appLog.WithFields(logrus.Fields{
			"recomputed": recomputed,
			"failures":   len(failures),
		}).Info("Recalculation finished")

		for _, failure := range failures {
			appLog.WithError(failure.Err).WithFields(logrus.Fields{
				"player": failure.PlayerName,
				"prop":   failure.PropType,
			}).Warn("Combination failed")
		}

		if len(failures) > 0 {
			return fmt.Errorf("%d combinations failed to recalculate", len(failures))
		}
		return nil
	},
}

var (
	evalPlayer   string
	evalProp     string
	evalSport    string
	evalLine     float64
	evalOdds     float64
	evalKind     string
	evalPlatform string
	evalBankroll float64
	evalLegs     int
)

func init() {
	evaluateCmd.Flags().StringVar(&evalPlayer, "player", "", "Player name")
	evaluateCmd.Flags().StringVar(&evalProp, "prop", "", "Prop type (e.g. points)")
	evaluateCmd.Flags().StringVar(&evalSport, "sport", "", "Sport key (e.g. basketball_nba)")
	evaluateCmd.Flags().Float64Var(&evalLine, "line", 0, "Prop line")
	evaluateCmd.Flags().Float64Var(&evalOdds, "odds", 0, "Market odds")
	evaluateCmd.Flags().StringVar(&evalKind, "odds-kind", "american", "Odds format: american, decimal, dfs")
	evaluateCmd.Flags().StringVar(&evalPlatform, "platform", "", "Platform key")
	evaluateCmd.Flags().Float64Var(&evalBankroll, "bankroll", 1000, "Bankroll")
	evaluateCmd.Flags().IntVar(&evalLegs, "legs", 1, "Leg count for DFS slips")
	evaluateCmd.MarkFlagRequired("player")
	evaluateCmd.MarkFlagRequired("prop")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a single prop against market odds",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, evaluator := buildEngine()

		result, err := evaluator.Evaluate(cmd.Context(), engine.EvaluationRequest{
			PlayerName: evalPlayer,
			PropType:   evalProp,
			SportKey:   evalSport,
			Line:       evalLine,
			Odds:       evalOdds,
			OddsKind:   engine.OddsKind(evalKind),
			Platform:   evalPlatform,
			Bankroll:   evalBankroll,
			LegCount:   evalLegs,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s %s %.1f (%s)\n", result.PlayerName, result.PropType, result.Line, result.PlatformKey)
		fmt.Printf("  hit rate:    %.1f%% over %d outcomes (%s confidence)\n",
			result.HitRate*100, result.SampleCount, result.ConfidenceLevel)
		fmt.Printf("  implied:     %.1f%%  EV: %+.2f%%  positive EV: %v\n",
			result.ImpliedProbability*100, result.EVPercentage, result.IsPositiveEV)
		fmt.Printf("  stake:       %.2f (%.2f%% of bankroll, %s risk)\n",
			result.RecommendedStake, result.KellyPercentage, result.RiskLevel)
		fmt.Printf("  verdict:     %s (%s)\n", result.Recommendation, result.Reasoning)

		return nil
	},
}
