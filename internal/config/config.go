// Package config handles loading and validating opticdeck configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Insight provider names.
const (
	ProviderNone   = "none"
	ProviderStatic = "static"
	ProviderHTTP   = "http"
)

// Config is the top-level opticdeck configuration.
type Config struct {
	DBPath    string          `yaml:"db_path"` // empty disables persistence
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	Report    ReportConfig    `yaml:"report"`
	Insights  InsightsConfig  `yaml:"insights"`
	Retention RetentionConfig `yaml:"retention"`
	Server    ServerConfig    `yaml:"server"`
	Findings  FindingsConfig  `yaml:"findings"`

	Notifications []NotificationConfig `yaml:"notifications"`
}

// ReportConfig controls the composed deck.
type ReportConfig struct {
	Title            string `yaml:"title"`
	Creator          string `yaml:"creator"`
	IncludeInventory bool   `yaml:"include_inventory"`
	OutputDir        string `yaml:"output_dir"` // used when no output path is given
}

// InsightsConfig selects and tunes the insight provider.
type InsightsConfig struct {
	Provider         string   `yaml:"provider"` // "none", "static" or "http"
	URL              string   `yaml:"url"`
	APIKey           string   `yaml:"api_key"`
	Model            string   `yaml:"model"`
	Timeout          Duration `yaml:"timeout"`
	MaxRetries       int      `yaml:"max_retries"`
	CPUThreshold     int      `yaml:"cpu_threshold"`
	Concurrency      int      `yaml:"concurrency"`
	PerformanceQuery string   `yaml:"performance_query,omitempty"`
	CacheTTL         Duration `yaml:"cache_ttl"`
	StaticDelay      Duration `yaml:"static_delay,omitempty"` // static only
}

// FindingsConfig overrides the stock assessment rules. Omitted rules keep
// their defaults.
type FindingsConfig struct {
	DiskFull    *RuleConfig `yaml:"disk_full"`
	LatencyHigh *RuleConfig `yaml:"latency_high"`
	CPUDense    *RuleConfig `yaml:"cpu_dense"`
}

// RuleConfig tunes one rule.
type RuleConfig struct {
	Threshold float64 `yaml:"threshold"`
	Severity  string  `yaml:"severity"`
	Disabled  bool    `yaml:"disabled"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Listen      string `yaml:"listen"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// NotificationConfig describes where run outcomes are announced.
type NotificationConfig struct {
	Type    string            `yaml:"type"` // "ntfy" or "webhook"
	URL     string            `yaml:"url"`
	Topic   string            `yaml:"topic,omitempty"`   // ntfy only
	Method  string            `yaml:"method,omitempty"`  // webhook only
	Headers map[string]string `yaml:"headers,omitempty"` // webhook only
}

// RetentionConfig bounds how long persisted rows are kept. Zero keeps forever.
type RetentionConfig struct {
	Narratives Duration `yaml:"narratives"`
	Reports    Duration `yaml:"reports"`
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load reads configuration from a YAML file. With no path, defaults and
// environment overrides apply. If a path is given and the file does not
// exist, ErrConfigFileNotFound is returned.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}

	in := c.Insights
	switch in.Provider {
	case ProviderNone, ProviderStatic:
	case ProviderHTTP:
		if in.URL == "" {
			return fmt.Errorf("insights: url is required for the http provider")
		}
		u, err := url.Parse(in.URL)
		if err != nil {
			return fmt.Errorf("insights: invalid url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("insights: url must use http or https, got %q", u.Scheme)
		}
		if in.Timeout.Duration <= 0 {
			return fmt.Errorf("insights: timeout must be > 0")
		}
	default:
		return fmt.Errorf("insights: unknown provider %q (expected none, static or http)", in.Provider)
	}
	if in.MaxRetries < 0 {
		return fmt.Errorf("insights: max_retries must be >= 0")
	}
	if in.CPUThreshold < 0 {
		return fmt.Errorf("insights: cpu_threshold must be >= 0")
	}
	if in.Concurrency < 1 {
		return fmt.Errorf("insights: concurrency must be >= 1")
	}
	if in.CacheTTL.Duration < 0 {
		return fmt.Errorf("insights: cache_ttl must be >= 0")
	}
	if c.Retention.Narratives.Duration < 0 || c.Retention.Reports.Duration < 0 {
		return fmt.Errorf("retention: durations must be >= 0")
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server: listen is required")
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server: max_upload_mb must be >= 1")
	}
	for name, r := range map[string]*RuleConfig{
		"disk_full":    c.Findings.DiskFull,
		"latency_high": c.Findings.LatencyHigh,
		"cpu_dense":    c.Findings.CPUDense,
	} {
		if r == nil || r.Disabled {
			continue
		}
		if r.Threshold < 0 {
			return fmt.Errorf("findings.%s: threshold must be >= 0", name)
		}
		switch r.Severity {
		case "", "critical", "warning", "info":
		default:
			return fmt.Errorf("findings.%s: severity must be one of: critical, warning, info", name)
		}
	}
	for i, n := range c.Notifications {
		switch n.Type {
		case "ntfy":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for ntfy", i)
			}
			if n.Topic == "" {
				return fmt.Errorf("notifications[%d]: topic is required for ntfy", i)
			}
		case "webhook":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for webhook", i)
			}
		default:
			return fmt.Errorf("notifications[%d]: unknown type %q (expected ntfy or webhook)", i, n.Type)
		}
	}
	return nil
}

func defaults() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Report: ReportConfig{
			Title: "Live Optics Analysis Report",
		},
		Insights: InsightsConfig{
			Provider:     ProviderNone,
			Timeout:      Duration{30 * time.Second},
			MaxRetries:   2,
			CPUThreshold: 32,
			Concurrency:  4,
			CacheTTL:     Duration{7 * 24 * time.Hour},
		},
		Retention: RetentionConfig{
			Narratives: Duration{30 * 24 * time.Hour},
			Reports:    Duration{365 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Listen:      "localhost:3810",
			MaxUploadMB: 64,
		},
	}
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPTICDECK_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("OPTICDECK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OPTICDECK_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("OPTICDECK_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("OPTICDECK_REPORT_TITLE"); v != "" {
		cfg.Report.Title = v
	}
	if v := os.Getenv("OPTICDECK_INSIGHTS_PROVIDER"); v != "" {
		cfg.Insights.Provider = v
	}
	if v := os.Getenv("OPTICDECK_INSIGHTS_URL"); v != "" {
		cfg.Insights.URL = v
	}
	if v := os.Getenv("OPTICDECK_INSIGHTS_API_KEY"); v != "" {
		cfg.Insights.APIKey = v
	}
	if v := os.Getenv("OPTICDECK_INSIGHTS_MODEL"); v != "" {
		cfg.Insights.Model = v
	}
	if v := os.Getenv("OPTICDECK_INSIGHTS_CPU_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Insights.CPUThreshold = n
		}
	}

	// Single ntfy target from env vars, only when YAML configures none.
	if len(cfg.Notifications) == 0 {
		if ntfyURL := os.Getenv("OPTICDECK_NTFY_URL"); ntfyURL != "" {
			topic := os.Getenv("OPTICDECK_NTFY_TOPIC")
			if topic == "" {
				topic = "opticdeck"
			}
			cfg.Notifications = append(cfg.Notifications, NotificationConfig{
				Type:  "ntfy",
				URL:   ntfyURL,
				Topic: topic,
			})
		}
	}
}
