package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// SMTPConfig holds mail relay settings for the daily summary.
type SMTPConfig struct {
	Host      string `json:"host,omitempty" toml:"host"`
	Port      int    `json:"port,omitempty" toml:"port"`
	Username  string `json:"username,omitempty" toml:"username"`
	Password  string `json:"password,omitempty" toml:"password"`
	From      string `json:"from,omitempty" toml:"from"`
	Recipient string `json:"recipient,omitempty" toml:"recipient"`
}

// Configured reports whether enough is set to attempt delivery.
func (s SMTPConfig) Configured() bool {
	return s.Username != "" && s.Password != "" && s.Recipient != ""
}

// Sender returns From, falling back to Username.
func (s SMTPConfig) Sender() string {
	if s.From != "" {
		return s.From
	}
	return s.Username
}

// Config holds application configuration.
type Config struct {
	// ActivityLabel is the mailbox label report messages are filed under.
	ActivityLabel string `json:"activity_label,omitempty" toml:"activity_label"`

	// ActivityLabelID is the Gmail id of that label (e.g. Label_4821), as it
	// appears in labelIds of API exports. Empty skips the check.
	ActivityLabelID string `json:"activity_label_id,omitempty" toml:"activity_label_id"`

	// MailDir is the inbox directory scanned for exported messages.
	// Empty means <baseDir>/inbox.
	MailDir string `json:"mail_dir,omitempty" toml:"mail_dir"`

	// Timezone is the IANA zone used for calendar-day attribution and for
	// "today" defaults. Empty means the local zone.
	Timezone string `json:"timezone,omitempty" toml:"timezone"`

	// ActivityKeywords extends the built-in free-text vocabulary.
	ActivityKeywords []string `json:"activity_keywords,omitempty" toml:"activity_keywords"`

	// IngestWorkers bounds parallel per-message extraction.
	IngestWorkers int `json:"ingest_workers,omitempty" toml:"ingest_workers"`

	SMTP SMTPConfig `json:"smtp,omitzero" toml:"smtp"`

	// CronSecret authorizes the web ingest trigger via X-Cron-Token.
	CronSecret string `json:"cron_secret,omitempty" toml:"cron_secret"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.nestlog/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" toml:"allowed_paths"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" toml:"allow_unsafe_paths"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" toml:"db_max_open_conns"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" toml:"db_max_idle_conns"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" toml:"disabled_tools"`

	// DisabledTypes disables every tool of a type ("report", "events").
	DisabledTypes []string `json:"disabled_types,omitempty" toml:"disabled_types"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ActivityLabel: "altitude",
		IngestWorkers: 4,
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// InboxDir returns MailDir, or <baseDir>/inbox when unset.
func (c *Config) InboxDir(baseDir string) string {
	if c.MailDir != "" {
		return c.MailDir
	}
	return filepath.Join(baseDir, "inbox")
}

// Load loads configuration from baseDir/config.json or baseDir/config.toml.
// Returns default config if neither exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.nestlog.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadDirRaw(baseDir)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.nestlog) and repo (.nestlog) directories.
// Repo config is found by walking upward from startDir to find the nearest .nestlog/ config.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadDirRaw(globalDir)
	if err != nil {
		return nil, err
	}

	repo := &Config{}
	if repoConfigPath := FindRepoConfig(startDir); repoConfigPath != "" {
		repo, err = loadDirRaw(filepath.Dir(repoConfigPath))
		if err != nil {
			return nil, err
		}
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// configNames lists accepted file names; earlier entries win.
var configNames = []string{"config.json", "config.toml"}

// FindRepoConfig walks upward from startDir to find the nearest .nestlog/config.{json,toml}.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		for _, name := range configNames {
			configPath := filepath.Join(dir, ".nestlog", name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadDirRaw loads the first config file present in dir.
// Returns zero-valued config if none exists (not defaults).
func loadDirRaw(dir string) (*Config, error) {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return loadFileRaw(path)
	}
	return &Config{}, nil
}

// loadFileRaw decodes one config file, choosing the format by extension.
func loadFileRaw(configPath string) (*Config, error) {
	cfg := &Config{}
	if strings.HasSuffix(configPath, ".toml") {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		ActivityLabel:   pick(overlay.ActivityLabel, base.ActivityLabel),
		ActivityLabelID: pick(overlay.ActivityLabelID, base.ActivityLabelID),
		MailDir:         pick(overlay.MailDir, base.MailDir),
		Timezone:        pick(overlay.Timezone, base.Timezone),
		IngestWorkers:   pick(overlay.IngestWorkers, base.IngestWorkers),
		CronSecret:      pick(overlay.CronSecret, base.CronSecret),
		DBMaxOpenConns:  pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:  pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		SMTP: SMTPConfig{
			Host:      pick(overlay.SMTP.Host, base.SMTP.Host),
			Port:      pick(overlay.SMTP.Port, base.SMTP.Port),
			Username:  pick(overlay.SMTP.Username, base.SMTP.Username),
			Password:  pick(overlay.SMTP.Password, base.SMTP.Password),
			From:      pick(overlay.SMTP.From, base.SMTP.From),
			Recipient: pick(overlay.SMTP.Recipient, base.SMTP.Recipient),
		},
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.ActivityKeywords = mergeStringSlice(base.ActivityKeywords, overlay.ActivityKeywords)
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// pick returns overlay unless it is the zero value.
func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// ApplyEnv overlays environment variables onto cfg. getenv is os.Getenv in
// production and a map lookup in tests. Malformed SMTP_PORT is an error.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.ActivityLabel, "NESTLOG_LABEL")
	set(&cfg.ActivityLabelID, "NESTLOG_LABEL_ID")
	set(&cfg.MailDir, "NESTLOG_MAIL_DIR")
	set(&cfg.Timezone, "NESTLOG_TIMEZONE")
	set(&cfg.SMTP.Host, "SMTP_SERVER")
	set(&cfg.SMTP.Username, "SMTP_USERNAME")
	set(&cfg.SMTP.Password, "SMTP_PASSWORD")
	set(&cfg.SMTP.Recipient, "RECIPIENT_EMAIL")
	set(&cfg.CronSecret, "CRON_SECRET")

	if v := strings.TrimSpace(getenv("SMTP_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			return fmt.Errorf("SMTP_PORT: invalid port %q", v)
		}
		cfg.SMTP.Port = port
	}
	return nil
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
