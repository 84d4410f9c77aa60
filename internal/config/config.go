package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"encoding/json"

	"zapcentral/internal/constants"
	"zapcentral/internal/models"
)

var (
	ErrMissingWPPURL = models.ConfigError{Message: "missing WPP automation server URL"}
	ErrMissingDBPath = models.ConfigError{Message: "missing database path"}
)

// LoadConfig reads the JSON configuration file, applies defaults and
// environment overrides, then validates the result.
func LoadConfig(path string) (*models.Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path contains null byte")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal not allowed")
		}
	}
	return nil
}

func validate(c *models.Config) error {
	if c.WPP.APIBaseURL == "" {
		return ErrMissingWPPURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.WPP.TimeoutMs <= 0 {
		c.WPP.TimeoutMs = constants.DefaultWPPTimeoutMs
	}
	if c.WPP.ConnectTimeoutSec <= 0 {
		c.WPP.ConnectTimeoutSec = constants.DefaultConnectTimeout
	}

	if c.Scheduler.IntervalSec <= 0 {
		c.Scheduler.IntervalSec = constants.DefaultReminderIntervalSec
	}
	if c.Scheduler.LeadTimeMin <= 0 {
		c.Scheduler.LeadTimeMin = constants.DefaultReminderLeadTimeMin
	}
	if c.Scheduler.SendTimeoutSec <= 0 {
		c.Scheduler.SendTimeoutSec = constants.DefaultSendTimeoutSec
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeout
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultBackoffInitialMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}

	if c.TokensDir == "" {
		c.TokensDir = "tokens"
	}
	if c.TimeZone == "" {
		c.TimeZone = constants.DefaultTimeZone
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid time zone %q: %v", c.TimeZone, err)}
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("WPP_API_URL"); url != "" {
		c.WPP.APIBaseURL = url
	}

	// SECURITY: credentials should come from the environment, not the file
	if key := os.Getenv("ZAPCENTRAL_WPP_API_KEY"); key != "" {
		c.WPP.APIKey = key
	}
	if secret := os.Getenv("ZAPCENTRAL_API_SECRET"); secret != "" {
		c.Server.APISecret = secret
	}

	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if dir := os.Getenv("TOKENS_DIR"); dir != "" {
		c.TokensDir = dir
	}
	if port := os.Getenv("PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && parsed > 0 {
			c.Server.Port = parsed
		}
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("ZAPCENTRAL_ENV") == "production"

	if isProduction {
		if c.Server.APISecret == "" {
			return models.ConfigError{Message: "API secret is required in production (set ZAPCENTRAL_API_SECRET environment variable)"}
		}
		if len(c.Server.APISecret) < constants.MinAPISecretLength {
			return models.ConfigError{Message: fmt.Sprintf("API secret must be at least %d characters long", constants.MinAPISecretLength)}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else if c.Server.APISecret == "" {
		fmt.Fprintf(os.Stderr, "WARNING: API secret not set. Set ZAPCENTRAL_API_SECRET environment variable for security.\n")
	}

	return nil
}
