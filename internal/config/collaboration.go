package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"dev.frostline.agent/internal/panel"
)

// CollaborationConfig shapes the specialist panel and the debate that follows
// it. It is loaded from YAML so deployments can retune the collaboration
// without rebuilding. Timeouts are plain millisecond integers because YAML
// carries numbers more predictably than duration strings.
type CollaborationConfig struct {
	// Location overrides the district the predictions are made for.
	// ${VAR} placeholders are expanded from the environment.
	Location string `yaml:"location,omitempty"`

	// BenchSeed seeds the simulated specialist bench. Zero means
	// nondeterministic.
	BenchSeed int64 `yaml:"bench_seed,omitempty"`

	// MaxRounds caps the debate. Range 1..10.
	MaxRounds int `yaml:"max_rounds,omitempty"`

	// ConsensusThreshold is the probability-point distance from the group
	// mean within which a specialist counts as agreeing. Range 1..50.
	ConsensusThreshold float64 `yaml:"consensus_threshold,omitempty"`

	// PositionTimeoutMS bounds each specialist's turn in a debate round.
	PositionTimeoutMS int `yaml:"position_timeout_ms,omitempty"`

	// AnalysisTimeoutMS bounds each specialist's independent analysis.
	AnalysisTimeoutMS int `yaml:"analysis_timeout_ms,omitempty"`

	// SkipDebate stops after independent analysis, keeping initial
	// estimates as final positions.
	SkipDebate bool `yaml:"skip_debate,omitempty"`

	// DisabledRoles names specialists to leave off the panel.
	DisabledRoles []string `yaml:"disabled_roles,omitempty"`
}

// PositionTimeout returns the per-turn debate timeout as a duration.
func (c *CollaborationConfig) PositionTimeout() time.Duration {
	return time.Duration(c.PositionTimeoutMS) * time.Millisecond
}

// AnalysisTimeout returns the per-specialist analysis timeout as a duration.
func (c *CollaborationConfig) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutMS) * time.Millisecond
}

// RoleDisabled reports whether the given specialist is turned off.
func (c *CollaborationConfig) RoleDisabled(role panel.Role) bool {
	for _, name := range c.DisabledRoles {
		if panel.Role(name) == role {
			return true
		}
	}
	return false
}

// Validate checks that the collaboration configuration is usable.
func (c *CollaborationConfig) Validate() error {
	if c.MaxRounds < 1 || c.MaxRounds > 10 {
		return fmt.Errorf("max_rounds must be between 1 and 10, got %d", c.MaxRounds)
	}
	if c.ConsensusThreshold < 1 || c.ConsensusThreshold > 50 {
		return fmt.Errorf("consensus_threshold must be between 1 and 50, got %g", c.ConsensusThreshold)
	}
	if c.PositionTimeoutMS <= 0 {
		return fmt.Errorf("position_timeout_ms must be positive, got %d", c.PositionTimeoutMS)
	}
	if c.AnalysisTimeoutMS <= 0 {
		return fmt.Errorf("analysis_timeout_ms must be positive, got %d", c.AnalysisTimeoutMS)
	}

	known := make(map[panel.Role]bool, len(panel.AllRoles()))
	for _, role := range panel.AllRoles() {
		known[role] = true
	}
	for _, name := range c.DisabledRoles {
		if !known[panel.Role(name)] {
			return fmt.Errorf("unknown role in disabled_roles: %q", name)
		}
	}
	if len(c.DisabledRoles) >= len(panel.AllRoles()) {
		return fmt.Errorf("disabled_roles removes every specialist; at least one must remain")
	}

	return nil
}

// CollaborationLoader handles loading and managing collaboration configurations
type CollaborationLoader struct {
	configPath string
	config     *CollaborationConfig
}

// NewCollaborationLoader creates a new collaboration configuration loader
func NewCollaborationLoader(configPath string) *CollaborationLoader {
	return &CollaborationLoader{
		configPath: configPath,
	}
}

// Load loads the collaboration configuration from file
func (l *CollaborationLoader) Load() (*CollaborationConfig, error) {
	if l.configPath == "" {
		return nil, fmt.Errorf("configuration path is required")
	}

	// Check if file exists
	if _, err := os.Stat(l.configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file does not exist: %s", l.configPath)
	}

	// Read configuration file
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return l.parse(data)
}

// LoadFromString loads configuration from a YAML string
func (l *CollaborationLoader) LoadFromString(yamlContent string) (*CollaborationConfig, error) {
	return l.parse([]byte(yamlContent))
}

func (l *CollaborationLoader) parse(data []byte) (*CollaborationConfig, error) {
	// Parse YAML configuration
	var config CollaborationConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	// Substitute environment variables
	if config.Location != "" {
		config.Location = os.ExpandEnv(config.Location)
	}

	// Apply default values
	applyCollaborationDefaults(&config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	l.config = &config
	return &config, nil
}

// GetConfig returns the loaded configuration
func (l *CollaborationLoader) GetConfig() *CollaborationConfig {
	return l.config
}

// Reload reloads the configuration from file
func (l *CollaborationLoader) Reload() (*CollaborationConfig, error) {
	return l.Load()
}

// applyCollaborationDefaults applies default values to the configuration
func applyCollaborationDefaults(config *CollaborationConfig) {
	if config.MaxRounds == 0 {
		config.MaxRounds = 5
	}
	if config.ConsensusThreshold == 0 {
		config.ConsensusThreshold = 10
	}
	if config.PositionTimeoutMS == 0 {
		config.PositionTimeoutMS = 30000 // 30 seconds in milliseconds
	}
	if config.AnalysisTimeoutMS == 0 {
		config.AnalysisTimeoutMS = 30000 // 30 seconds in milliseconds
	}
}

// Save saves the configuration to file
func (l *CollaborationLoader) Save(config *CollaborationConfig) error {
	if l.configPath == "" {
		return fmt.Errorf("configuration path is required")
	}

	// Validate configuration before saving
	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(l.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}

	// Marshal configuration to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	// Write to file
	if err := os.WriteFile(l.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	l.config = config
	return nil
}

// GetDefaultCollaboration returns a default collaboration configuration
func GetDefaultCollaboration() *CollaborationConfig {
	return &CollaborationConfig{
		Location:           "Candia, NH",
		MaxRounds:          5,
		ConsensusThreshold: 10,
		PositionTimeoutMS:  30000, // 30 seconds in milliseconds
		AnalysisTimeoutMS:  30000, // 30 seconds in milliseconds
	}
}
