// Package config centralizes runtime configuration: FROSTLINE_* environment
// variables for service wiring, and an optional YAML collaboration file that
// shapes the specialist panel and debate.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration, resolved from environment
// variables with built-in defaults.
type Config struct {
	Server  ServerConfig
	Weather WeatherConfig
	Cache   CacheConfig
	Ledger  LedgerConfig
	Panel   PanelConfig
	Debate  DebateConfig
	Logging LoggingConfig

	// CollabConfig optionally points at a YAML collaboration file that
	// overrides the panel and debate tuning.
	CollabConfig string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         string
	Mode         string // "debug", "release", or "test"
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WeatherConfig holds weather provider settings. An empty APIKey means no
// provider is configured and the scenario generator serves snapshots instead.
type WeatherConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	Location     string
	ScenarioSeed int64
}

// CacheConfig holds redis snapshot cache settings.
type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// LedgerConfig holds outcome ledger settings.
type LedgerConfig struct {
	Enabled bool
	Path    string
}

// PanelConfig holds specialist stage settings. A zero MaxParallelism means
// one slot per role.
type PanelConfig struct {
	AnalysisTimeout time.Duration
	MaxParallelism  int
}

// DebateConfig holds default debate bounds. The YAML collaboration file can
// override them per deployment.
type DebateConfig struct {
	Enabled            bool
	MaxRounds          int
	ConsensusThreshold float64
	PositionTimeout    time.Duration
}

// LoggingConfig holds logrus settings.
type LoggingConfig struct {
	Level  string // trace, debug, info, warn, error
	Format string // "text" or "json"
}

// Load resolves the configuration from the environment.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("FROSTLINE_HOST", "0.0.0.0"),
			Port:         getEnv("FROSTLINE_PORT", "7060"),
			Mode:         getEnv("GIN_MODE", "release"),
			ReadTimeout:  getDurationEnv("FROSTLINE_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("FROSTLINE_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getDurationEnv("FROSTLINE_IDLE_TIMEOUT", 120*time.Second),
		},
		Weather: WeatherConfig{
			APIKey:       getEnv("FROSTLINE_WEATHER_API_KEY", ""),
			BaseURL:      getEnv("FROSTLINE_WEATHER_BASE_URL", "https://api.coldfront.dev"),
			Timeout:      getDurationEnv("FROSTLINE_WEATHER_TIMEOUT", 10*time.Second),
			MaxRetries:   getIntEnv("FROSTLINE_WEATHER_MAX_RETRIES", 3),
			Location:     getEnv("FROSTLINE_LOCATION", "Candia, NH"),
			ScenarioSeed: int64(getIntEnv("FROSTLINE_SCENARIO_SEED", 0)),
		},
		Cache: CacheConfig{
			Enabled:  getBoolEnv("FROSTLINE_CACHE_ENABLED", false),
			Addr:     getEnv("FROSTLINE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("FROSTLINE_REDIS_PASSWORD", ""),
			DB:       getIntEnv("FROSTLINE_REDIS_DB", 0),
			TTL:      getDurationEnv("FROSTLINE_CACHE_TTL", 10*time.Minute),
		},
		Ledger: LedgerConfig{
			Enabled: getBoolEnv("FROSTLINE_LEDGER_ENABLED", true),
			Path:    getEnv("FROSTLINE_LEDGER_PATH", "frostline.db"),
		},
		Panel: PanelConfig{
			AnalysisTimeout: getDurationEnv("FROSTLINE_ANALYSIS_TIMEOUT", 30*time.Second),
			MaxParallelism:  getIntEnv("FROSTLINE_MAX_PARALLELISM", 0),
		},
		Debate: DebateConfig{
			Enabled:            getBoolEnv("FROSTLINE_DEBATE_ENABLED", true),
			MaxRounds:          getIntEnv("FROSTLINE_MAX_ROUNDS", 5),
			ConsensusThreshold: getFloatEnv("FROSTLINE_CONSENSUS_THRESHOLD", 10),
			PositionTimeout:    getDurationEnv("FROSTLINE_POSITION_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("FROSTLINE_LOG_LEVEL", "info"),
			Format: getEnv("FROSTLINE_LOG_FORMAT", "text"),
		},
		CollabConfig: getEnv("FROSTLINE_COLLAB_CONFIG", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
