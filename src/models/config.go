package models

// MConfig Structure
type MConfig struct {
	Name          string           `yaml:"name"`
	Host          string           `yaml:"host"`
	Port          int              `yaml:"port"`
	LogLevel      string           `yaml:"log_level"`
	GrpcPort      int              `yaml:"grpc_port"`
	StatusEnabled bool             `yaml:"status_enabled"`
	Directory     MDirectoryConfig `yaml:"directory"`
	Quote         MQuoteConfig     `yaml:"quote"`
	Storage       MStorageConfig   `yaml:"storage"`
	Sync          MSyncConfig      `yaml:"sync"`
	Schedule      MScheduleConfig  `yaml:"schedule"`
	Network       MNetworkConfig   `yaml:"network"`
}

type MDirectoryConfig struct {
	URL            string `yaml:"url"` // CSE_ALL_COMPANY_CODES_API_URL
	TimeoutSeconds int    `yaml:"timeout"`
}

type MQuoteConfig struct {
	WebsocketURL          string `yaml:"websocket_url"` // TRADINGVIEW_WEBSOCKET_URL
	Exchange              string `yaml:"exchange"`
	SessionTimeoutSeconds int    `yaml:"session_timeout_seconds"`
	CompleteOnFirstDelta  bool   `yaml:"complete_on_first_delta"`
	SendIntervalMillis    int    `yaml:"send_interval_ms"`
	Origin                string `yaml:"origin"`
	UserAgent             string `yaml:"user_agent"` // Optional, rotated from the pool when empty
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"` // STORE_CONNECTION_STRING
	RegisterDirectory  bool   `yaml:"register_directory"`
}

type MSyncConfig struct {
	RateLimitSeconds  float64 `yaml:"rate_limit_seconds"`
	MaxRetries        int     `yaml:"max_retries"` // Total attempts per company
	RetryDelaySeconds float64 `yaml:"retry_delay_seconds"`
	MaxCompanies      int     `yaml:"max_companies"` // 0 = all
}

type MScheduleConfig struct {
	IntervalHours   float64 `yaml:"interval_hours"` // 0 = single run
	MIC             string  `yaml:"mic"`
	TradingDaysOnly bool    `yaml:"trading_days_only"`
}

type MNetworkConfig struct {
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
}

// GetLogLevel lets the logger read the level without importing config.
func (c *MConfig) GetLogLevel() string {
	if c == nil {
		return "INFO"
	}
	return c.LogLevel
}
