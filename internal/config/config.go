// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	HTTP          HttpConfig          `yaml:"http"`
	Rod           RodConfig           `yaml:"rod"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Robots        RobotsConfig        `yaml:"robots"`
	Upload        UploadConfig        `yaml:"upload"`
	Normalize     NormalizeConfig     `yaml:"normalize"`
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type HttpConfig struct {
	UserAgent                 string `yaml:"user_agent"`
	ConnectTimeoutMS          int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS            int    `yaml:"total_timeout_ms"`
	MaxIdleConnections        int    `yaml:"max_idle_connections"`
	MaxIdleConnectionsPerHost int    `yaml:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int    `yaml:"idle_connection_timeout_s"`
	AcceptLanguage            string `yaml:"accept_language"`
}

type RodConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ChromePath       string `yaml:"chrome_path"`
	RemoteURL        string `yaml:"remote_url"`
	PageTimeoutS     int    `yaml:"page_timeout_s"`
	WaitLoadTimeoutS int    `yaml:"wait_load_timeout_s"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm"`
}

type RobotsConfig struct {
	Enabled       bool `yaml:"enabled"`
	CacheTTLHours int  `yaml:"cache_ttl_hours"`
}

type UploadConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxBytes          int64    `yaml:"max_bytes"`
	Sheet             string   `yaml:"sheet"`
}

type NormalizeConfig struct {
	CurrencySymbols []string `yaml:"currency_symbols"`
	TrimNBSP        bool     `yaml:"trim_nbsp"`
	CollapseSpaces  bool     `yaml:"collapse_spaces"`
}

type StorageConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	Table            string `yaml:"table"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type ServerConfig struct {
	Addr             string `yaml:"addr"`
	ShutdownTimeoutS int    `yaml:"shutdown_timeout_s"`
	MaxSessions      int    `yaml:"max_sessions"` // LRU: самые давние сессии вытесняются
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
}

// Default возвращает конфиг, с которым сервис работает без YAML файла:
// SQLite рядом с бинарником, без rod и без robots.txt.
func Default() *Config {
	return &Config{
		HTTP: HttpConfig{
			UserAgent:                 "sitewatch/1.0",
			ConnectTimeoutMS:          10000,
			TotalTimeoutMS:            30000,
			MaxIdleConnections:        100,
			MaxIdleConnectionsPerHost: 10,
			IdleConnectionTimeoutS:    90,
			AcceptLanguage:            "en-US,en;q=0.9",
		},
		Rod: RodConfig{
			PageTimeoutS:     30,
			WaitLoadTimeoutS: 15,
		},
		RateLimit: RateLimitConfig{
			MaxConcurrentPerHost: 1,
			RPM:                  60,
		},
		Robots: RobotsConfig{
			CacheTTLHours: 12,
		},
		Upload: UploadConfig{
			AllowedExtensions: []string{".xls", ".xlsx", ".csv"},
			MaxBytes:          10 << 20,
		},
		Normalize: NormalizeConfig{
			CurrencySymbols: []string{"$", "€", "£", "₽"},
			TrimNBSP:        false,
		},
		Storage: StorageConfig{
			Driver:           "sqlite",
			DSN:              "websites.db",
			Table:            "websites",
			CommandTimeoutMS: 5000,
		},
		Server: ServerConfig{
			Addr:             ":8080",
			ShutdownTimeoutS: 10,
			MaxSessions:      1000,
		},
		Observability: ObservabilityConfig{
			LogPath:       "logs/sitewatch.log",
			LogLevel:      "info",
			LogMaxSizeMB:  50,
			LogMaxBackups: 3,
		},
	}
}

// Validation
func (c *Config) Validate() error {
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxIdleConnections < 0 || c.HTTP.MaxIdleConnectionsPerHost < 0 {
		return fmt.Errorf("http.max_idle_connections must be >= 0")
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("rate_limit.max_concurrent_per_host must be > 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.Robots.Enabled && c.Robots.CacheTTLHours <= 0 {
		return fmt.Errorf("robots.cache_ttl_hours must be > 0 when robots.enabled is true")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("upload.allowed_extensions is required")
	}
	for _, ext := range c.Upload.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("upload.allowed_extensions: %q must start with '.'", ext)
		}
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be > 0")
	}
	if len(c.Normalize.CurrencySymbols) == 0 {
		return fmt.Errorf("normalize.currency_symbols is required")
	}
	switch c.Storage.Driver {
	case "sqlite", "mssql", "postgres":
	default:
		return fmt.Errorf("storage.driver must be 'sqlite', 'mssql' or 'postgres'")
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required")
	}
	if c.Storage.Table == "" {
		return fmt.Errorf("storage.table is required")
	}
	if c.Storage.CommandTimeoutMS <= 0 {
		return fmt.Errorf("storage.command_timeout_ms must be > 0")
	}
	if c.Server.MaxSessions <= 0 {
		return fmt.Errorf("server.max_sessions must be > 0")
	}
	if c.Server.ShutdownTimeoutS <= 0 {
		return fmt.Errorf("server.shutdown_timeout_s must be > 0")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	if c.Rod.Enabled {
		if c.Rod.ChromePath == "" && c.Rod.RemoteURL == "" {
			return fmt.Errorf("rod.chrome_path or rod.remote_url is required when rod.enabled is true")
		}
		if c.Rod.PageTimeoutS <= 0 {
			return fmt.Errorf("rod.page_timeout_s must be > 0")
		}
		if c.Rod.WaitLoadTimeoutS <= 0 {
			return fmt.Errorf("rod.wait_load_timeout_s must be > 0")
		}
	}
	return nil
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.Robots.CacheTTLHours) * time.Hour
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}

func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutS) * time.Second
}
