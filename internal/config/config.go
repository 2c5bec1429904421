// Package config loads service settings from an optional .env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dvloznov/wealthwisdom/internal/aggregate"
	"github.com/dvloznov/wealthwisdom/internal/gateway"
	"github.com/dvloznov/wealthwisdom/internal/logger"
	"github.com/dvloznov/wealthwisdom/internal/requests/inmemory"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Gemini backends.
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Port is the HTTP listen port.
	// Environment variable: PORT
	Port string `koanf:"PORT"`

	// LogLevel is one of debug, info, warn, error.
	// Environment variable: LOG_LEVEL
	LogLevel string `koanf:"LOG_LEVEL"`

	// APIKey and GeminiAPIKey are alternative names for the Gemini key;
	// API_KEY wins when both are set.
	APIKey       string `koanf:"API_KEY"`
	GeminiAPIKey string `koanf:"GEMINI_API_KEY"`

	GeminiModel         string `koanf:"GEMINI_MODEL"`
	GeminiBackend       string `koanf:"GEMINI_BACKEND"`
	GoogleCloudProject  string `koanf:"GOOGLE_CLOUD_PROJECT"`
	GoogleCloudLocation string `koanf:"GOOGLE_CLOUD_LOCATION"`

	// TrendWindow is the number of dated groups in the dashboard trend;
	// zero keeps all of them.
	TrendWindow    int  `koanf:"TREND_WINDOW"`
	RecentLimit    int  `koanf:"RECENT_LIMIT"`
	SeedSample     bool `koanf:"SEED_SAMPLE"`
	RequestHistory int  `koanf:"REQUEST_HISTORY"`

	// ReceiptBucket enables the GCS receipt archive when set.
	ReceiptBucket string `koanf:"RECEIPT_BUCKET"`
	ReceiptPrefix string `koanf:"RECEIPT_PREFIX"`

	// CredentialsFile is a service account JSON used by the GCS and
	// BigQuery clients; Application Default Credentials otherwise.
	CredentialsFile string `koanf:"GOOGLE_CREDENTIALS_FILE"`

	BigQueryProject string `koanf:"BIGQUERY_PROJECT"`
	BigQueryDataset string `koanf:"BIGQUERY_DATASET"`
	BigQueryTable   string `koanf:"BIGQUERY_TABLE"`

	NotionToken      string `koanf:"NOTION_TOKEN"`
	NotionDatabaseID string `koanf:"NOTION_DATABASE_ID"`
}

// Defaults returns the configuration used for unset variables.
func Defaults() Config {
	return Config{
		Port:           "8080",
		LogLevel:       "info",
		GeminiModel:    gateway.DefaultModel,
		GeminiBackend:  BackendGemini,
		TrendWindow:    aggregate.DefaultTrendWindow,
		RecentLimit:    aggregate.DefaultRecentLimit,
		RequestHistory: inmemory.DefaultCapacity,
		ReceiptPrefix:  "receipts",
	}
}

// Load reads envFile if it exists (variables already set in the process
// win), then overlays the process environment on Defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("Load: reading %s: %w", envFile, err)
			}
		}
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("Load: environment: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("Load: decoding: %w", err)
	}
	cfg.GeminiBackend = strings.ToLower(strings.TrimSpace(cfg.GeminiBackend))

	return &cfg, nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	switch c.GeminiBackend {
	case BackendGemini:
	case BackendVertex:
		if c.GoogleCloudProject == "" {
			problems = append(problems, "GOOGLE_CLOUD_PROJECT is required when GEMINI_BACKEND is vertex")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid Gemini backend '%s': must be one of [gemini vertex]", c.GeminiBackend))
	}

	if c.TrendWindow < 0 {
		problems = append(problems, fmt.Sprintf("invalid trend window %d: must not be negative", c.TrendWindow))
	}
	if c.RecentLimit < 0 {
		problems = append(problems, fmt.Sprintf("invalid recent limit %d: must not be negative", c.RecentLimit))
	}
	if c.RequestHistory < 1 {
		problems = append(problems, fmt.Sprintf("invalid request history %d: must be positive", c.RequestHistory))
	}

	if (c.BigQueryDataset == "") != (c.BigQueryTable == "") {
		problems = append(problems, "BIGQUERY_DATASET and BIGQUERY_TABLE must be set together")
	}
	if c.BigQueryEnabled() && c.BigQueryProjectID() == "" {
		problems = append(problems, "BIGQUERY_PROJECT or GOOGLE_CLOUD_PROJECT is required for the BigQuery export")
	}
	if (c.NotionToken == "") != (c.NotionDatabaseID == "") {
		problems = append(problems, "NOTION_TOKEN and NOTION_DATABASE_ID must be set together")
	}

	if len(problems) > 0 {
		return errors.New("configuration validation failed: " + strings.Join(problems, "; "))
	}
	return nil
}

// GeminiKey returns the configured API key, preferring API_KEY.
func (c *Config) GeminiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.GeminiAPIKey
}

// Gateway returns the AI gateway settings.
func (c *Config) Gateway() gateway.Config {
	return gateway.Config{
		APIKey:   c.GeminiKey(),
		Model:    c.GeminiModel,
		Backend:  c.GeminiBackend,
		Project:  c.GoogleCloudProject,
		Location: c.GoogleCloudLocation,
	}
}

// BigQueryEnabled reports whether the BigQuery sink is configured.
func (c *Config) BigQueryEnabled() bool {
	return c.BigQueryDataset != "" && c.BigQueryTable != ""
}

// BigQueryProjectID falls back to GOOGLE_CLOUD_PROJECT.
func (c *Config) BigQueryProjectID() string {
	if c.BigQueryProject != "" {
		return c.BigQueryProject
	}
	return c.GoogleCloudProject
}

// NotionEnabled reports whether the Notion sink is configured.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDatabaseID != ""
}
