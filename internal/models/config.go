package models

// Config holds the application configuration
type Config struct {
	WPP       WPPConfig       `json:"wpp"`
	Database  DatabaseConfig  `json:"database"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Server    ServerConfig    `json:"server"`
	Tracing   TracingConfig   `json:"tracing"`
	Retry     RetryConfig     `json:"retry"`
	TokensDir string          `json:"tokens_dir"`
	TimeZone  string          `json:"time_zone"`
	LogLevel  string          `json:"log_level"`
}

// WPPConfig holds automation-server related configuration
type WPPConfig struct {
	APIBaseURL        string `json:"api_base_url"`
	APIKey            string `json:"api_key"`
	TimeoutMs         int    `json:"timeout_ms"`
	ConnectTimeoutSec int    `json:"connectTimeoutSec"`
}

// DatabaseConfig holds database related configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SchedulerConfig holds reminder scheduler configuration
type SchedulerConfig struct {
	IntervalSec    int `json:"intervalSec"`
	LeadTimeMin    int `json:"leadTimeMin"`
	SendTimeoutSec int `json:"sendTimeoutSec"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	APISecret       string `json:"api_secret"`
	ReadTimeoutSec  int    `json:"readTimeoutSec"`
	WriteTimeoutSec int    `json:"writeTimeoutSec"`
	IdleTimeoutSec  int    `json:"idleTimeoutSec"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

// RetryConfig holds retry related configuration
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
