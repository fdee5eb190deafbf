// Package config handles configuration and API key management for techtouch.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HomeEnv overrides the configuration directory when set
const HomeEnv = "TECHTOUCH_HOME"

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style"`              // "dark", "light", "notty" or a glamour style name
	EnableEmoji      bool   `json:"enable_emoji"`       // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines"`  // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap"`         // Enable word wrap in table cells
	InlineTableLinks bool   `json:"inline_table_links"` // Render links inline in tables
}

// RetryConfig mirrors the client retry policy in milliseconds
type RetryConfig struct {
	MaxAttempts    int `json:"max_attempts"`
	InitialDelayMS int `json:"initial_delay_ms"`
	MaxDelayMS     int `json:"max_delay_ms"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `json:"addr"`
	// AllowOrigins lists extra CORS origins; loopback pages on the server port are always allowed
	AllowOrigins []string `json:"allow_origins,omitempty"`
}

// Config represents the user configuration
type Config struct {
	DefaultModel string `json:"default_model"`
	// Language selects the reply and error message language ("ar" or "en")
	Language        string  `json:"language"`
	Temperature     float32 `json:"temperature"`
	TopP            float32 `json:"top_p"`
	TopK            float32 `json:"top_k"`
	MaxOutputTokens int32   `json:"max_output_tokens"`
	// Persona names the system-instruction preset used by chat
	Persona string      `json:"persona"`
	Retry   RetryConfig `json:"retry"`
	// FeedTTLMinutes is how long cached news lists are served
	FeedTTLMinutes int `json:"feed_ttl_minutes"`
	// FetchLinks downloads pages mentioned in chat to enrich link prompts
	FetchLinks bool `json:"fetch_links"`
	// Verbose enables detailed logging output during operations.
	Verbose         bool           `json:"verbose"`
	LogLevel        string         `json:"log_level"`
	CopyToClipboard bool           `json:"copy_to_clipboard"`
	TUITheme        string         `json:"tui_theme,omitempty"`    // TUI color theme
	DownloadDir     string         `json:"download_dir,omitempty"` // Directory for images and translated files
	Markdown        MarkdownConfig `json:"markdown,omitempty"`
	Server          ServerConfig   `json:"server"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	dir, _ := GetConfigDir()
	return Config{
		DefaultModel:    "flash",
		Language:        "ar",
		Temperature:     0.9,
		TopP:            0.95,
		TopK:            64,
		MaxOutputTokens: 8192,
		Persona:         DefaultPersonaName,
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelayMS: 1000,
			MaxDelayMS:     8000,
		},
		FeedTTLMinutes:  360,
		FetchLinks:      true,
		Verbose:         false,
		LogLevel:        "info",
		CopyToClipboard: false,
		TUITheme:        "techtouch",
		DownloadDir:     filepath.Join(dir, "downloads"),
		Markdown:        DefaultMarkdownConfig(),
		Server:          ServerConfig{Addr: "127.0.0.1:8787"},
	}
}

// FeedTTL returns the feed cache lifetime
func (c Config) FeedTTL() time.Duration {
	return time.Duration(c.FeedTTLMinutes) * time.Minute
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".techtouch"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// Use 0o700 for sensitive directories (contains the API key)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetCachePath returns the path to the feed cache database
func GetCachePath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cache", "feeds.db"), nil
}

// GetDownloadDir returns the download directory from config, creating it if necessary
func GetDownloadDir(cfg Config) (string, error) {
	dir := cfg.DownloadDir
	if dir == "" {
		configDir, err := GetConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(configDir, "downloads")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	return dir, nil
}

// LoadConfig loads the configuration from disk
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if config doesn't exist
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// AvailableModels returns a list of available model names
func AvailableModels() []string {
	return []string{
		"flash",
		"pro",
		"lite",
		"image",
	}
}

// Keys returns the keys accepted by Set
func Keys() []string {
	return []string{
		"default_model", "language", "temperature", "top_p", "top_k", "max_output_tokens",
		"persona", "retry.max_attempts", "retry.initial_delay_ms", "retry.max_delay_ms",
		"feed_ttl_minutes", "fetch_links", "verbose", "log_level", "copy_to_clipboard",
		"tui_theme", "download_dir", "markdown.style", "server.addr",
	}
}

// Set assigns a single setting from its string form
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)

	switch key {
	case "default_model":
		c.DefaultModel = value
	case "language":
		if value != "ar" && value != "en" {
			return fmt.Errorf("language must be ar or en")
		}
		c.Language = value
	case "temperature", "top_p", "top_k":
		f, err := strconv.ParseFloat(value, 32)
		if err != nil || f < 0 {
			return fmt.Errorf("%s must be a non-negative number", key)
		}
		switch key {
		case "temperature":
			c.Temperature = float32(f)
		case "top_p":
			c.TopP = float32(f)
		default:
			c.TopK = float32(f)
		}
	case "max_output_tokens":
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer", key)
		}
		c.MaxOutputTokens = int32(n)
	case "persona":
		c.Persona = value
	case "retry.max_attempts", "retry.initial_delay_ms", "retry.max_delay_ms", "feed_ttl_minutes":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer", key)
		}
		switch key {
		case "retry.max_attempts":
			c.Retry.MaxAttempts = n
		case "retry.initial_delay_ms":
			c.Retry.InitialDelayMS = n
		case "retry.max_delay_ms":
			c.Retry.MaxDelayMS = n
		default:
			c.FeedTTLMinutes = n
		}
	case "fetch_links", "verbose", "copy_to_clipboard":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false", key)
		}
		switch key {
		case "fetch_links":
			c.FetchLinks = b
		case "verbose":
			c.Verbose = b
		default:
			c.CopyToClipboard = b
		}
	case "log_level":
		switch value {
		case "debug", "info", "warn", "error":
			c.LogLevel = value
		default:
			return fmt.Errorf("log_level must be debug, info, warn or error")
		}
	case "tui_theme":
		c.TUITheme = value
	case "download_dir":
		c.DownloadDir = value
	case "markdown.style":
		c.Markdown.Style = value
	case "server.addr":
		c.Server.Addr = value
	default:
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return nil
}
