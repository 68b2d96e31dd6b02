// Package config provides YAML-based configuration loading for valet.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level valet configuration, loaded from valet.yaml.
type Config struct {
	Platform  string          `yaml:"platform"` // "discord" or "slack"
	Discord   DiscordConfig   `yaml:"discord"`
	Slack     SlackConfig     `yaml:"slack"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Airtable  AirtableConfig  `yaml:"airtable"`
	NumVerify NumVerifyConfig `yaml:"numverify"`
	Prayer    PrayerConfig    `yaml:"prayer"`
	Merge     MergeConfig     `yaml:"merge"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Resolver  string          `yaml:"resolver"` // DNS server for /whois lookups
}

// DiscordConfig holds Discord gateway credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken  string `yaml:"app_token"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// StorageConfig controls the ephemeral staging area.
type StorageConfig struct {
	Dir string `yaml:"dir"` // staging root for files in flight
}

// DatabaseConfig selects the persistent store for notes and locations.
// SQLite is the default; MySQL is available for shared deployments.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`   // mysql
	Port   int    `yaml:"port"`   // mysql
	Name   string `yaml:"name"`   // mysql database name
	User   string `yaml:"user"`   // mysql
}

// AirtableConfig holds credentials for the expense spreadsheet backend.
type AirtableConfig struct {
	Token        string `yaml:"token"`
	BaseID       string `yaml:"base_id"`
	Table        string `yaml:"table"`
	Participants string `yaml:"participants_table"`
}

// NumVerifyConfig holds the phone-lookup API key.
type NumVerifyConfig struct {
	APIKey string `yaml:"api_key"`
}

// PrayerConfig holds the default location, calculation method, and the
// optional daily digest schedule.
type PrayerConfig struct {
	City      string       `yaml:"city"`
	Country   string       `yaml:"country"`
	Latitude  float64      `yaml:"latitude"`
	Longitude float64      `yaml:"longitude"`
	Method    int          `yaml:"method"`
	Digest    DigestConfig `yaml:"digest"`
}

// DigestConfig schedules the daily prayer-times digest.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"` // 5-field cron expression
}

// MergeConfig bounds the PDF collection workflow.
type MergeConfig struct {
	MaxFiles int `yaml:"max_files"`
}

// DashboardConfig controls the optional status HTTP server.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Storage.Dir == "" {
		c.Storage.Dir = "tmp"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "valet.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "valet"
		}
	}
	if c.Airtable.Table == "" {
		c.Airtable.Table = "Expenses"
	}
	if c.Airtable.Participants == "" {
		c.Airtable.Participants = "Participants"
	}
	if c.Prayer.City == "" {
		c.Prayer.City = "Dubai"
		c.Prayer.Country = "United Arab Emirates"
		c.Prayer.Latitude = 25.2048
		c.Prayer.Longitude = 55.2708
	}
	if c.Prayer.Method == 0 {
		c.Prayer.Method = 3
	}
	if c.Prayer.Digest.Enabled && c.Prayer.Digest.Cron == "" {
		c.Prayer.Digest.Cron = "0 5 * * *"
	}
	if c.Merge.MaxFiles == 0 {
		c.Merge.MaxFiles = 20
	}
	if c.Dashboard.Enabled && c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Resolver == "" {
		c.Resolver = "8.8.8.8:53"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Platform {
	case "":
		errs = append(errs, "platform is required (discord or slack)")
	case "discord":
		if c.Discord.BotToken == "" {
			errs = append(errs, "discord.bot_token is required")
		}
	case "slack":
		if c.Slack.AppToken == "" {
			errs = append(errs, "slack.app_token is required")
		}
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported platform %q", c.Platform))
	}
	if c.Merge.MaxFiles < 0 {
		errs = append(errs, "merge.max_files must not be negative")
	}
	if c.Prayer.Method < 1 || c.Prayer.Method > 15 {
		errs = append(errs, fmt.Sprintf("prayer.method %d is not a known calculation method", c.Prayer.Method))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
