package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"ringstat/internal/errors"
)

// Engine kinds
const (
	EngineSubprocess = "subprocess"
	EngineProbe      = "probe"
)

// Config represents the complete application configuration
type Config struct {
	Log      LogConfig
	Engine   EngineConfig
	Trials   TrialConfig
	Database DatabaseConfig
	Server   ServerConfig
	Reports  ReportConfig
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// EngineConfig selects and configures the topology engine
type EngineConfig struct {
	Kind            string
	Command         string
	Args            []string
	Coefficient     int // field for diagrams
	CoordinatePrime int // field for circular coordinate sessions
}

// TrialConfig holds defaults for trial batches. Seed 0 means "derive from the clock".
type TrialConfig struct {
	Count     int
	Workers   int
	Retries   int
	Landmarks int
	Seed      int64
}

// DatabaseConfig holds the optional sweep store connection
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds the optional progress server address
type ServerConfig struct {
	ListenAddr string
}

// ReportConfig holds optional report output paths
type ReportConfig struct {
	XLSX string
	HTML string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Log:      LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "INFO")},
		Engine:   loadEngineConfig(),
		Trials:   loadTrialConfig(),
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Server:   ServerConfig{ListenAddr: os.Getenv("LISTEN_ADDR")},
		Reports: ReportConfig{
			XLSX: os.Getenv("REPORT_XLSX"),
			HTML: os.Getenv("REPORT_HTML"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		Kind:            strings.ToLower(getEnvOrDefault("ENGINE_KIND", EngineSubprocess)),
		Command:         getEnvOrDefault("ENGINE_COMMAND", "python3"),
		Args:            strings.Fields(getEnvOrDefault("ENGINE_ARGS", "scripts/engine_bridge.py")),
		Coefficient:     getEnvIntOrDefault("ENGINE_COEFF", 3),
		CoordinatePrime: getEnvIntOrDefault("ENGINE_COORD_PRIME", 41),
	}
}

func loadTrialConfig() TrialConfig {
	return TrialConfig{
		Count:     getEnvIntOrDefault("TRIAL_COUNT", 100),
		Workers:   getEnvIntOrDefault("TRIAL_WORKERS", 1),
		Retries:   getEnvIntOrDefault("TRIAL_RETRIES", 0),
		Landmarks: getEnvIntOrDefault("LANDMARKS", 1000),
		Seed:      getEnvInt64OrDefault("TRIAL_SEED", 0),
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	switch c.Engine.Kind {
	case EngineSubprocess:
		if c.Engine.Command == "" {
			return errors.ConfigInvalid("ENGINE_COMMAND is required for the subprocess engine")
		}
	case EngineProbe:
	default:
		return errors.ConfigInvalid(fmt.Sprintf("ENGINE_KIND must be %q or %q, got %q", EngineSubprocess, EngineProbe, c.Engine.Kind))
	}
	if !isPrime(c.Engine.Coefficient) {
		return errors.ConfigInvalid(fmt.Sprintf("ENGINE_COEFF must be prime, got %d", c.Engine.Coefficient))
	}
	if !isPrime(c.Engine.CoordinatePrime) {
		return errors.ConfigInvalid(fmt.Sprintf("ENGINE_COORD_PRIME must be prime, got %d", c.Engine.CoordinatePrime))
	}
	if c.Trials.Count < 1 {
		return errors.ConfigInvalid("TRIAL_COUNT must be at least 1")
	}
	if c.Trials.Workers < 1 {
		return errors.ConfigInvalid("TRIAL_WORKERS must be at least 1")
	}
	if c.Trials.Retries < 0 {
		return errors.ConfigInvalid("TRIAL_RETRIES must not be negative")
	}
	return nil
}

func isPrime(p int) bool {
	if p < 2 {
		return false
	}
	for d := 2; d*d <= p; d++ {
		if p%d == 0 {
			return false
		}
	}
	return true
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
