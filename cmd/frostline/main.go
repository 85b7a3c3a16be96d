package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"dev.frostline.agent/internal/config"
	"dev.frostline.agent/internal/debate"
	"dev.frostline.agent/internal/decision"
	"dev.frostline.agent/internal/ledger"
	"dev.frostline.agent/internal/panel"
	"dev.frostline.agent/internal/panel/simulated"
	"dev.frostline.agent/internal/router"
	"dev.frostline.agent/internal/services"
	"dev.frostline.agent/internal/weather"
)

const appVersion = "1.0.0"

var (
	configFile  = flag.String("config", "", "Path to collaboration configuration file (YAML)")
	serve       = flag.Bool("serve", false, "Run the HTTP API server instead of a one-shot prediction")
	serverHost  = flag.String("host", "", "Server bind host (overrides FROSTLINE_HOST)")
	serverPort  = flag.String("port", "", "Server port (overrides FROSTLINE_PORT)")
	location    = flag.String("location", "", "District to predict for (overrides FROSTLINE_LOCATION)")
	date        = flag.String("date", "", "School day to predict, YYYY-MM-DD (default: today)")
	seed        = flag.Int64("seed", 0, "Seed for the simulated weather source and specialist bench")
	scenario    = flag.String("scenario", "", "Pin the simulated weather source to a named scenario")
	skipDebate  = flag.Bool("skip-debate", false, "Skip the debate and synthesize from independent analyses")
	ledgerPath  = flag.String("ledger", "", "Ledger database path (overrides FROSTLINE_LEDGER_PATH)")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Show version information")
	showHelp    = flag.Bool("help", false, "Show help message")
)

// AppConfig carries the parsed command line into run, so the startup logic
// stays testable without touching package-level flag state.
type AppConfig struct {
	ShowHelp       bool
	ShowVersion    bool
	Serve          bool
	ConfigFile     string
	Host           string
	Port           string
	Location       string
	Date           string
	Seed           int64
	Scenario       string
	SkipDebate     bool
	LedgerPath     string
	Verbose        bool
	Logger         *logrus.Logger
	ShutdownSignal chan os.Signal
}

// DefaultAppConfig returns the default application configuration
func DefaultAppConfig() *AppConfig {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &AppConfig{
		Logger:         logger,
		ShutdownSignal: nil,
	}
}

// run executes the main application logic with the given configuration
// Returns an error if the application fails to start
func run(appCfg *AppConfig) error {
	if appCfg.ShowHelp {
		printHelp()
		return nil
	}

	if appCfg.ShowVersion {
		printVersion()
		return nil
	}

	// Load full configuration from environment variables
	cfg := config.Load()

	// Override with command-line specified values if provided
	if appCfg.Host != "" {
		cfg.Server.Host = appCfg.Host
	}
	if appCfg.Port != "" {
		cfg.Server.Port = appCfg.Port
	}
	if appCfg.Location != "" {
		cfg.Weather.Location = appCfg.Location
	}
	if appCfg.LedgerPath != "" {
		cfg.Ledger.Enabled = true
		cfg.Ledger.Path = appCfg.LedgerPath
	}

	logger := appCfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	configureLogger(logger, cfg.Logging, appCfg.Verbose)

	// Load the collaboration file when one is given by flag or environment.
	// It wins over the environment for the panel and debate tuning it covers.
	collabPath := appCfg.ConfigFile
	if collabPath == "" {
		collabPath = cfg.CollabConfig
	}
	var collab *config.CollaborationConfig
	if collabPath != "" {
		loader := config.NewCollaborationLoader(collabPath)
		loaded, err := loader.Load()
		if err != nil {
			return fmt.Errorf("failed to load collaboration configuration: %w", err)
		}
		collab = loaded
		logger.WithField("path", collabPath).Info("Loaded collaboration configuration")

		if collab.Location != "" && appCfg.Location == "" {
			cfg.Weather.Location = collab.Location
		}
	}

	svc, cleanup, err := buildService(cfg, collab, appCfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if appCfg.Serve {
		return runServer(cfg, svc, appCfg, logger)
	}
	return runOnce(cfg, svc, appCfg)
}

// buildService assembles the weather source, specialist stage, debate engine,
// coordinator and ledger into a prediction service. The returned cleanup
// closes whatever the wiring opened.
func buildService(
	cfg *config.Config,
	collab *config.CollaborationConfig,
	appCfg *AppConfig,
	logger *logrus.Logger,
) (*services.PredictionService, func(), error) {
	cleanup := func() {}

	stageCfg := panel.DefaultStageConfig()
	stageCfg.AnalysisTimeout = cfg.Panel.AnalysisTimeout

	debateCfg := debate.DefaultConfig()
	debateCfg.MaxRounds = cfg.Debate.MaxRounds
	debateCfg.ConsensusThreshold = cfg.Debate.ConsensusThreshold
	debateCfg.PositionTimeout = cfg.Debate.PositionTimeout

	if cfg.Panel.MaxParallelism > 0 {
		stageCfg.MaxParallelism = cfg.Panel.MaxParallelism
		debateCfg.MaxParallelism = cfg.Panel.MaxParallelism
	}

	skip := appCfg.SkipDebate || !cfg.Debate.Enabled
	benchSeed := appCfg.Seed

	if collab != nil {
		debateCfg.MaxRounds = collab.MaxRounds
		debateCfg.ConsensusThreshold = collab.ConsensusThreshold
		debateCfg.PositionTimeout = collab.PositionTimeout()
		stageCfg.AnalysisTimeout = collab.AnalysisTimeout()
		skip = skip || collab.SkipDebate
		if benchSeed == 0 {
			benchSeed = collab.BenchSeed
		}
	}

	analysts := simulated.Bench(simulated.WithSeed(benchSeed))
	if collab != nil && len(collab.DisabledRoles) > 0 {
		kept := analysts[:0]
		for _, a := range analysts {
			if !collab.RoleDisabled(a.Role()) {
				kept = append(kept, a)
			}
		}
		analysts = kept
	}

	stage, err := panel.NewStage(analysts, stageCfg, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to assemble specialist panel: %w", err)
	}

	engine, err := debate.NewEngine(stage, debateCfg, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to build debate engine: %w", err)
	}

	coordinator, err := decision.NewCoordinator(stage, decision.DefaultConfig(), logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to build coordinator: %w", err)
	}

	// A configured provider key selects the live weather client; otherwise
	// the seeded scenario generator stands in. A pinned scenario always
	// needs the generator, since the live client cannot be forced.
	var source weather.Source
	if cfg.Weather.APIKey == "" || appCfg.Scenario != "" {
		wxSeed := appCfg.Seed
		if wxSeed == 0 {
			wxSeed = cfg.Weather.ScenarioSeed
		}
		source = weather.NewScenarioGenerator(wxSeed)
		logger.WithField("seed", wxSeed).Info("Using simulated weather source")
	} else {
		client, err := weather.NewClient(weather.ClientConfig{
			BaseURL:    cfg.Weather.BaseURL,
			APIKey:     cfg.Weather.APIKey,
			Timeout:    cfg.Weather.Timeout,
			MaxRetries: cfg.Weather.MaxRetries,
		}, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to build weather client: %w", err)
		}
		source = client

		if cfg.Cache.Enabled {
			cached := weather.NewCachedSource(client, weather.CacheConfig{
				Addr:     cfg.Cache.Addr,
				Password: cfg.Cache.Password,
				DB:       cfg.Cache.DB,
				TTL:      cfg.Cache.TTL,
			}, logger)
			source = cached
			prev := cleanup
			cleanup = func() {
				if err := cached.Close(); err != nil {
					logger.WithError(err).Warn("Error closing weather cache")
				}
				prev()
			}
			logger.WithField("addr", cfg.Cache.Addr).Info("Weather snapshot cache enabled")
		}
	}

	var store *ledger.Store
	if cfg.Ledger.Enabled {
		store, err = ledger.Open(cfg.Ledger.Path, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to open ledger: %w", err)
		}
		prev := cleanup
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("Error closing ledger")
			}
			prev()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.CreateTable(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("failed to prepare ledger schema: %w", err)
		}
		logger.WithField("path", cfg.Ledger.Path).Info("Prediction ledger ready")
	}

	svc, err := services.NewPredictionService(
		source, stage, engine, coordinator, store,
		services.Config{SkipDebate: skip}, logger,
	)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to build prediction service: %w", err)
	}
	return svc, cleanup, nil
}

// runOnce runs a single prediction and prints it to stdout.
func runOnce(cfg *config.Config, svc *services.PredictionService, appCfg *AppConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := svc.Predict(ctx, services.PredictRequest{
		Location: cfg.Weather.Location,
		Date:     appCfg.Date,
		Seed:     appCfg.Seed,
		Scenario: appCfg.Scenario,
	})
	if err != nil {
		return fmt.Errorf("prediction failed: %w", err)
	}

	p := result.Prediction
	snap := result.Context.Snapshot

	fmt.Printf("School cancellation outlook for %s on %s\n\n", p.Location, result.Date)
	fmt.Printf("Conditions: %.0f F (feels like %.0f F), %.1f in expected snow, wind %.0f mph\n",
		snap.TemperatureF, snap.FeelsLikeF, snap.ExpectedSnowfallIn, snap.WindSpeedMPH)
	if len(snap.Alerts) > 0 {
		fmt.Printf("Alerts: %s\n", strings.Join(snap.Alerts, "; "))
	}
	fmt.Println()

	fmt.Printf("Probability:  %.1f%%\n", p.Probability)
	fmt.Printf("Confidence:   %s\n", p.ConfidenceLevel)
	fmt.Printf("Rationale:    %s\n", p.Rationale)
	if len(p.PrimaryFactors) > 0 {
		fmt.Println("Primary factors:")
		for _, factor := range p.PrimaryFactors {
			fmt.Printf("  - %s\n", factor)
		}
	}

	fmt.Println("\nSpecialist contributions:")
	for _, c := range p.Contributions {
		fmt.Printf("  %-15s %6.1f%%  (weight %.2f)\n", c.Role, c.Probability, c.Weight)
	}

	if result.Collaboration != nil {
		fmt.Printf("\nDebate: %d round(s), exit: %s\n",
			result.Collaboration.TotalRounds, result.Collaboration.ExitReason)
		if result.Collaboration.Summary != "" {
			fmt.Printf("        %s\n", result.Collaboration.Summary)
		}
	}

	if result.Entry != nil {
		fmt.Printf("\nRecorded in ledger as entry %s\n", result.Entry.ID)
	}
	return nil
}

// runServer starts the HTTP API and blocks until a shutdown signal arrives.
func runServer(cfg *config.Config, svc *services.PredictionService, appCfg *AppConfig, logger *logrus.Logger) error {
	gin.SetMode(cfg.Server.Mode)
	r := router.SetupRouter(svc, appVersion)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Channel for server errors
	serverErr := make(chan error, 1)

	go func() {
		logger.WithFields(logrus.Fields{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		}).Info("Starting Frostline prediction server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Use provided shutdown signal or create one
	quit := appCfg.ShutdownSignal
	if quit == nil {
		quit = make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	}

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
		// Continue to shutdown
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}

// configureLogger applies the logging configuration. The verbose flag wins
// over the configured level.
func configureLogger(logger *logrus.Logger, cfg config.LoggingConfig, verbose bool) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

func main() {
	// Load environment variables from .env file (if present)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).Debug("Could not load .env file")
		}
	}

	flag.Parse()

	appCfg := DefaultAppConfig()
	appCfg.ShowHelp = *showHelp
	appCfg.ShowVersion = *showVersion
	appCfg.Serve = *serve
	appCfg.ConfigFile = *configFile
	appCfg.Host = *serverHost
	appCfg.Port = *serverPort
	appCfg.Location = *location
	appCfg.Date = *date
	appCfg.Seed = *seed
	appCfg.Scenario = *scenario
	appCfg.SkipDebate = *skipDebate
	appCfg.LedgerPath = *ledgerPath
	appCfg.Verbose = *verbose

	if err := run(appCfg); err != nil {
		appCfg.Logger.WithError(err).Fatal("Application failed")
	}
}

func printHelp() {
	names := make([]string, 0)
	for _, sc := range weather.Scenarios() {
		names = append(names, sc.Name)
	}

	fmt.Printf(`Frostline - School Cancellation Probability Engine

A panel of simulated specialists analyzes winter weather, debates until
consensus, and produces a cancellation probability for a school day.

Usage:
  frostline [options]

Options:
  -serve
        Run the HTTP API server instead of a one-shot prediction
  -config string
        Path to collaboration configuration file (YAML)
  -host string
        Server bind host (overrides FROSTLINE_HOST)
  -port string
        Server port (overrides FROSTLINE_PORT)
  -location string
        District to predict for (overrides FROSTLINE_LOCATION)
  -date string
        School day to predict, YYYY-MM-DD (default: today)
  -seed int
        Seed for the simulated weather source and specialist bench
  -scenario string
        Pin the simulated weather source to a named scenario:
        %s
  -skip-debate
        Skip the debate and synthesize from independent analyses
  -ledger string
        Ledger database path (overrides FROSTLINE_LEDGER_PATH)
  -verbose
        Enable debug logging
  -version
        Show version information
  -help
        Show this help message

Examples:
  # One-shot prediction with a reproducible blizzard
  frostline -scenario blizzard -seed 42

  # Predict for a specific district and day
  frostline -location "Concord, NH" -date 2026-01-15

  # Run the HTTP API on port 8080
  frostline -serve -port 8080

  # Serve with a tuned collaboration file
  frostline -serve -config collaboration.yaml

Environment:
  FROSTLINE_WEATHER_API_KEY   Use the live weather provider instead of scenarios
  FROSTLINE_LOCATION          Default district
  FROSTLINE_LEDGER_PATH       Prediction ledger database path
  FROSTLINE_CACHE_ENABLED     Cache weather snapshots in redis

For more information, visit: https://dev.frostline.agent
`, strings.Join(names, ", "))
}

func printVersion() {
	fmt.Printf("Frostline v%s\n", appVersion)
}
