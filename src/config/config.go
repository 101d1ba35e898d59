package config

import (
	"fmt"
	"os"
	"strings"

	"financials-sync/src/models"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML file.
const (
	EnvDirectoryURL     = "CSE_ALL_COMPANY_CODES_API_URL"
	EnvWebsocketURL     = "TRADINGVIEW_WEBSOCKET_URL"
	EnvStoreConnString  = "STORE_CONNECTION_STRING"
	defaultWebsocketURL = "wss://data.tradingview.com/socket.io/websocket"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig loads the YAML file, fills defaults, applies environment
// overrides and validates the result.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	return Parse(data, os.LookupEnv)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from YAML bytes. lookup reads environment overrides.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	config.applyEnv(lookup)

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "financials-sync"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Directory.TimeoutSeconds == 0 {
		c.Directory.TimeoutSeconds = 30
	}
	if c.Quote.WebsocketURL == "" {
		c.Quote.WebsocketURL = defaultWebsocketURL
	}
	if c.Quote.Exchange == "" {
		c.Quote.Exchange = "CSELK"
	}
	if c.Quote.SessionTimeoutSeconds == 0 {
		c.Quote.SessionTimeoutSeconds = 15
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = 3
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = c.Directory.TimeoutSeconds
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if v, ok := lookup(EnvDirectoryURL); ok && v != "" {
		c.Directory.URL = v
	}
	if v, ok := lookup(EnvWebsocketURL); ok && v != "" {
		c.Quote.WebsocketURL = v
	}
	if v, ok := lookup(EnvStoreConnString); ok && v != "" {
		c.Storage.DBConnectionString = v
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation. Endpoint and connection
// string presence is checked by the components that need them.
func (c *Config) Validate() error {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "WARN", "ERROR", "CRITICAL":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	// Validate Server configuration
	if c.StatusEnabled && (c.Port <= 1024 || c.Port > 65535) {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Validate Quote configuration
	if c.Quote.SessionTimeoutSeconds <= 0 {
		return fmt.Errorf("session timeout must be greater than 0")
	}
	if c.Quote.SendIntervalMillis < 0 {
		return fmt.Errorf("send interval cannot be negative")
	}

	// Validate Storage configuration
	switch strings.ToLower(c.Storage.DBType) {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Validate Sync configuration
	if c.Sync.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1 (it counts total attempts)")
	}
	if c.Sync.RateLimitSeconds < 0 || c.Sync.RetryDelaySeconds < 0 {
		return fmt.Errorf("rate limit and retry delay cannot be negative")
	}
	if c.Sync.MaxCompanies < 0 {
		return fmt.Errorf("max companies cannot be negative")
	}

	// Validate Schedule configuration
	if c.Schedule.IntervalHours < 0 {
		return fmt.Errorf("schedule interval cannot be negative")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
