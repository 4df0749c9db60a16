package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds the application's configuration values.
type Config struct {
	DatabaseURL    string        `yaml:"database_url"`
	HTTPPort       string        `yaml:"http_port"`
	SnapshotDir    string        `yaml:"snapshot_dir"`
	ScreenshotDir  string        `yaml:"screenshot_dir"`
	ChromePath     string        `yaml:"chrome_path"` // empty means probe well-known locations
	CheckInterval  time.Duration `yaml:"check_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	ScanRateLimit  float64       `yaml:"scan_rate_limit"` // requests/sec against a site during deep scan
	Screenshots    bool          `yaml:"screenshots"`
	RetentionDays  int           `yaml:"retention_days"`
	ReportRecipient string       `yaml:"report_recipient"`
	SMTPAddr       string        `yaml:"smtp_addr"`
	SMTPFrom       string        `yaml:"smtp_from"`
	DNSResolvers   []string      `yaml:"dns_resolvers"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

// fileConfig mirrors Config for YAML decoding. Durations are strings in the
// file ("12h", "30s") since yaml.v2 cannot decode into time.Duration.
type fileConfig struct {
	DatabaseURL     string   `yaml:"database_url"`
	HTTPPort        string   `yaml:"http_port"`
	SnapshotDir     string   `yaml:"snapshot_dir"`
	ScreenshotDir   string   `yaml:"screenshot_dir"`
	ChromePath      string   `yaml:"chrome_path"`
	CheckInterval   string   `yaml:"check_interval"`
	RequestTimeout  string   `yaml:"request_timeout"`
	MaxConcurrency  *int     `yaml:"max_concurrency"`
	ScanRateLimit   *float64 `yaml:"scan_rate_limit"`
	Screenshots     *bool    `yaml:"screenshots"`
	RetentionDays   *int     `yaml:"retention_days"`
	ReportRecipient string   `yaml:"report_recipient"`
	SMTPAddr        string   `yaml:"smtp_addr"`
	SMTPFrom        string   `yaml:"smtp_from"`
	DNSResolvers    []string `yaml:"dns_resolvers"`
	ShutdownGrace   string   `yaml:"shutdown_grace"`
}

// Load reads the optional YAML config file at path and applies environment
// variable overrides on top of built-in defaults. A missing file is not an
// error; an unreadable or malformed one is.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:    "sitewatch.db",
		HTTPPort:       "8080",
		SnapshotDir:    "data/scans",
		ScreenshotDir:  "data/screenshots",
		CheckInterval:  12 * time.Hour,
		RequestTimeout: 30 * time.Second,
		MaxConcurrency: 4,
		ScanRateLimit:  2.0,
		RetentionDays:  30,
		SMTPAddr:       "localhost:25",
		SMTPFrom:       "sitewatch@localhost",
		DNSResolvers:   []string{"1.1.1.1:53", "8.8.8.8:53"},
		ShutdownGrace:  10 * time.Second,
	}

	if path == "" {
		path = getEnv("SITEWATCH_CONFIG", "")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else {
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			if err := applyFile(cfg, &fc); err != nil {
				return nil, fmt.Errorf("invalid config file %s: %w", path, err)
			}
		}
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.SnapshotDir = getEnv("SNAPSHOT_DIR", cfg.SnapshotDir)
	cfg.ScreenshotDir = getEnv("SCREENSHOT_DIR", cfg.ScreenshotDir)
	cfg.ChromePath = getEnv("CHROME_PATH", cfg.ChromePath)
	cfg.CheckInterval = getEnvDuration("CHECK_INTERVAL", cfg.CheckInterval)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.MaxConcurrency = getEnvInt("MAX_CONCURRENCY", cfg.MaxConcurrency)
	cfg.Screenshots = getEnvBool("SCREENSHOTS", cfg.Screenshots)
	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.ReportRecipient = getEnv("REPORT_RECIPIENT_EMAIL", cfg.ReportRecipient)
	cfg.SMTPAddr = getEnv("SMTP_ADDR", cfg.SMTPAddr)
	cfg.SMTPFrom = getEnv("SMTP_FROM", cfg.SMTPFrom)
	cfg.ShutdownGrace = getEnvDuration("SHUTDOWN_GRACE", cfg.ShutdownGrace)

	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.ScanRateLimit <= 0 {
		cfg.ScanRateLimit = 2.0
	}

	return cfg, nil
}

// applyFile copies set values from the YAML file onto cfg.
func applyFile(cfg *Config, fc *fileConfig) error {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.HTTPPort, fc.HTTPPort)
	setString(&cfg.SnapshotDir, fc.SnapshotDir)
	setString(&cfg.ScreenshotDir, fc.ScreenshotDir)
	setString(&cfg.ChromePath, fc.ChromePath)
	setString(&cfg.ReportRecipient, fc.ReportRecipient)
	setString(&cfg.SMTPAddr, fc.SMTPAddr)
	setString(&cfg.SMTPFrom, fc.SMTPFrom)

	setDuration := func(dst *time.Duration, key, v string) error {
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("bad duration for %s: %w", key, err)
		}
		*dst = d
		return nil
	}
	if err := setDuration(&cfg.CheckInterval, "check_interval", fc.CheckInterval); err != nil {
		return err
	}
	if err := setDuration(&cfg.RequestTimeout, "request_timeout", fc.RequestTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.ShutdownGrace, "shutdown_grace", fc.ShutdownGrace); err != nil {
		return err
	}

	if fc.MaxConcurrency != nil {
		cfg.MaxConcurrency = *fc.MaxConcurrency
	}
	if fc.ScanRateLimit != nil {
		cfg.ScanRateLimit = *fc.ScanRateLimit
	}
	if fc.Screenshots != nil {
		cfg.Screenshots = *fc.Screenshots
	}
	if fc.RetentionDays != nil {
		cfg.RetentionDays = *fc.RetentionDays
	}
	if len(fc.DNSResolvers) > 0 {
		cfg.DNSResolvers = fc.DNSResolvers
	}
	return nil
}

// Helper function to get an environment variable or return a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper function to get an environment variable as an integer.
func getEnvInt(key string, fallback int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

// Helper function to get an environment variable as a boolean.
func getEnvBool(key string, fallback bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

// Helper function to get an environment variable as a time.Duration.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return fallback
}
