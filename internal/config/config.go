// Package config loads the portal configuration and the salon schedule.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "PORTAL_CONFIG_PATH"

type Config struct {
	Portal struct {
		Role     string `yaml:"role"` // admin | client
		ClientID string `yaml:"client_id"`
	} `yaml:"portal"`

	HTTP struct {
		Port               int     `yaml:"port"`
		AdminAPIKey        string  `yaml:"admin_api_key"`
		RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
		RateLimitBurst     int     `yaml:"rate_limit_burst"`
		SessionTTLMinutes  int     `yaml:"session_ttl_minutes"`
	} `yaml:"http"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address     string `yaml:"address"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		DocumentKey string `yaml:"document_key"`
	} `yaml:"redis"`

	Remote struct {
		Enabled         bool   `yaml:"enabled"`
		BinURL          string `yaml:"bin_url"`
		APIKey          string `yaml:"api_key"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"remote"`

	Sync struct {
		PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
		DebounceMillis      int  `yaml:"debounce_millis"`
		GuardSeconds        int  `yaml:"guard_seconds"`
		CompareAndSwap      bool `yaml:"compare_and_swap"`
	} `yaml:"sync"`

	Booking struct {
		HorizonDays        int `yaml:"horizon_days"`
		SlotMinutes        int `yaml:"slot_minutes"`
		ArrivalWindowHours int `yaml:"arrival_window_hours"`
		FlowTimeoutMinutes int `yaml:"flow_timeout_minutes"`
	} `yaml:"booking"`

	Reminders struct {
		Enabled              bool `yaml:"enabled"`
		CheckIntervalMinutes int  `yaml:"check_interval_minutes"`
	} `yaml:"reminders"`

	Audit struct {
		Enabled   bool   `yaml:"enabled"`
		OutputDir string `yaml:"output_dir"`
	} `yaml:"audit"`

	Telegram struct {
		BotToken     string  `yaml:"bot_token"`
		Debug        bool    `yaml:"debug"`
		AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	} `yaml:"telegram"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		SheetName       string `yaml:"sheet_name"`
	} `yaml:"sheets"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	SchedulePath          string `yaml:"schedule_path"`
	ScheduleReloadSeconds int    `yaml:"schedule_reload_seconds"`
}

// Load reads the YAML config at path. An empty path falls back to
// $PORTAL_CONFIG_PATH and then configs/config.yaml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Portal.Role = strings.ToLower(strings.TrimSpace(c.Portal.Role))
	if c.Portal.Role == "" {
		c.Portal.Role = "admin"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/salonbook.db"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Redis.DocumentKey == "" {
		c.Redis.DocumentKey = "salonbook:document"
	}
	if c.Audit.OutputDir == "" {
		c.Audit.OutputDir = "data/audit"
	}
	if c.Sheets.SheetName == "" {
		c.Sheets.SheetName = "Appointments"
	}
	if c.SchedulePath == "" {
		c.SchedulePath = "configs/schedule.yaml"
	}
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Portal.Role {
	case "admin":
	case "client":
		if c.Portal.ClientID == "" {
			return fmt.Errorf("portal.client_id is required for the client role")
		}
	default:
		return fmt.Errorf("portal.role: unknown role %q, expected admin or client", c.Portal.Role)
	}
	if c.Remote.Enabled && c.Remote.BinURL == "" {
		return fmt.Errorf("remote.bin_url is required when remote is enabled")
	}
	if c.Sheets.Enabled && (c.Sheets.CredentialsFile == "" || c.Sheets.SpreadsheetID == "") {
		return fmt.Errorf("sheets: credentials_file and spreadsheet_id are required when enabled")
	}
	if c.Booking.SlotMinutes < 0 || c.Booking.HorizonDays < 0 || c.Booking.ArrivalWindowHours < 0 {
		return fmt.Errorf("booking: values cannot be negative")
	}
	return nil
}

// IsAdmin reports whether this process is the admin replica.
func (c *Config) IsAdmin() bool {
	return c.Portal.Role == "admin"
}

func (c *Config) SyncInterval() time.Duration {
	if c.Sync.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Sync.PollIntervalSeconds) * time.Second
}

func (c *Config) Debounce() time.Duration {
	if c.Sync.DebounceMillis <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Sync.DebounceMillis) * time.Millisecond
}

func (c *Config) Guard() time.Duration {
	if c.Sync.GuardSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Sync.GuardSeconds) * time.Second
}

func (c *Config) HorizonDays() int {
	if c.Booking.HorizonDays <= 0 {
		return 90
	}
	return c.Booking.HorizonDays
}

func (c *Config) SlotStep() time.Duration {
	if c.Booking.SlotMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.SlotMinutes) * time.Minute
}

func (c *Config) ArrivalWindow() time.Duration {
	if c.Booking.ArrivalWindowHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(c.Booking.ArrivalWindowHours) * time.Hour
}

// FlowTimeout is how long an idle booking flow is kept.
func (c *Config) FlowTimeout() time.Duration {
	if c.Booking.FlowTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.FlowTimeoutMinutes) * time.Minute
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupRetention() time.Duration {
	if c.Backup.RetentionDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

func (c *Config) ReminderInterval() time.Duration {
	if c.Reminders.CheckIntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Reminders.CheckIntervalMinutes) * time.Minute
}

func (c *Config) RemoteCacheTTL() time.Duration {
	if c.Remote.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Remote.CacheTTLSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	if c.HTTP.SessionTTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(c.HTTP.SessionTTLMinutes) * time.Minute
}

func (c *Config) ScheduleReload() time.Duration {
	if c.ScheduleReloadSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ScheduleReloadSeconds) * time.Second
}
