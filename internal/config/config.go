package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Overlap policies for attendant assignments
const (
	OverlapAllow  = "allow"
	OverlapReject = "reject"
)

// CountSchedule defines recurring attendance counts created by the scheduleCounts command
type CountSchedule struct {
	EventID    string `yaml:"eventId" validate:"required"`
	NamePrefix string `yaml:"namePrefix" validate:"required,max=80"`
	RRule      string `yaml:"rrule" validate:"required"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	Addr        string   `yaml:"addr" env:"HTTP_ADDR" validate:"required"`
	CORSOrigins []string `yaml:"corsOrigins,omitempty" env:"CORS_ORIGINS" envSeparator:","`
}

// RedisConfig configures the optional identity cache
type RedisConfig struct {
	URL              string        `yaml:"url,omitempty" env:"REDIS_URL"`
	IdentityCacheTTL time.Duration `yaml:"identityCacheTTL,omitempty" validate:"min=0"`
}

// LoggingConfig configures the log outputs
type LoggingConfig struct {
	Dir          string `yaml:"dir,omitempty"`
	ConsoleLevel string `yaml:"consoleLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`
}

// Limits bounds the size of bulk operations
type Limits struct {
	MaxBulkPositions     int `yaml:"maxBulkPositions" validate:"min=1,max=1000"`
	MaxScheduledSessions int `yaml:"maxScheduledSessions" validate:"min=1,max=1000"`
}

// AssignmentsConfig controls assignment ledger behaviour
type AssignmentsConfig struct {
	OverlapPolicy string `yaml:"overlapPolicy" validate:"oneof=allow reject"`
}

// Config represents the application configuration
type Config struct {
	Store          string            `yaml:"store" validate:"required,oneof=postgres memory"`
	DatabaseURL    string            `yaml:"databaseURL,omitempty" env:"DATABASE_URL" validate:"required_if=Store postgres"`
	HTTP           HTTPConfig        `yaml:"http"`
	Redis          RedisConfig       `yaml:"redis,omitempty"`
	Logging        LoggingConfig     `yaml:"logging,omitempty"`
	Limits         Limits            `yaml:"limits"`
	Assignments    AssignmentsConfig `yaml:"assignments"`
	CountSchedules []CountSchedule   `yaml:"countSchedules,omitempty" validate:"dive"`
	TemplateConfig string            `yaml:"templateConfig,omitempty" env:"TEMPLATE_CONFIG"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from attendant_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads {env}_attendant_config.yaml, falling back to attendant_config.yaml.
// Values from the process environment (and an optional .env file) override the file.
func LoadWithEnv(envName string) (*Config, error) {
	configPath, err := findConfigFile(envName)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// A missing .env file is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.ApplyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills unset optional fields
func (c *Config) ApplyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Limits.MaxBulkPositions == 0 {
		c.Limits.MaxBulkPositions = 100
	}
	if c.Limits.MaxScheduledSessions == 0 {
		c.Limits.MaxScheduledSessions = 100
	}
	if c.Assignments.OverlapPolicy == "" {
		c.Assignments.OverlapPolicy = OverlapAllow
	}
	if c.Redis.IdentityCacheTTL == 0 {
		c.Redis.IdentityCacheTTL = 5 * time.Minute
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Logging.ConsoleLevel == "" {
		c.Logging.ConsoleLevel = "info"
	}
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Validate rrule syntax for each count schedule
	for i, schedule := range cfg.CountSchedules {
		if _, err := rrule.StrToRRule(schedule.RRule); err != nil {
			return fmt.Errorf("invalid rrule in countSchedules[%d]: %w", i, err)
		}
	}

	return nil
}

// Default returns an in-memory configuration with every default applied
func Default() *Config {
	cfg := &Config{Store: StoreMemory}
	cfg.ApplyDefaults()
	return cfg
}

// findConfigFile searches for the config file in current directory and home directory
func findConfigFile(envName string) (string, error) {
	var candidates []string
	if envName != "" {
		candidates = append(candidates, fmt.Sprintf("%s_attendant_config.yaml", envName))
	}
	candidates = append(candidates, "attendant_config.yaml")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	for _, name := range candidates {
		// Check current directory
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}

		// Check home directory
		homeConfigPath := filepath.Join(homeDir, name)
		if _, err := os.Stat(homeConfigPath); err == nil {
			return homeConfigPath, nil
		}
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
