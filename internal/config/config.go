package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Health    HealthConfig    `mapstructure:"health"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	BodyLimit       string        `mapstructure:"body_limit"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CategoryConfig binds one category label to its recognized extensions.
// Categories are a list rather than a map so label casing survives the
// config loader's case-insensitive key handling.
type CategoryConfig struct {
	Label      string   `mapstructure:"label"`
	Extensions []string `mapstructure:"extensions"`
}

// StorageConfig holds the managed root and upload rules.
type StorageConfig struct {
	Root              string           `mapstructure:"root"`
	Categories        []CategoryConfig `mapstructure:"categories"`
	AllowedExtensions []string         `mapstructure:"allowed_extensions"`
	PartialMaxAge     time.Duration    `mapstructure:"partial_max_age"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// HealthConfig holds storage health check configuration.
type HealthConfig struct {
	CheckInterval  time.Duration `mapstructure:"check_interval"`
	LowDiskPercent float64       `mapstructure:"low_disk_percent"`
}

// WatcherConfig holds filesystem watcher configuration.
type WatcherConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// SchedulerConfig holds background task configuration.
type SchedulerConfig struct {
	PartialSweepInterval time.Duration `mapstructure:"partial_sweep_interval"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigins:     []string{"*"},
			BodyLimit:       "1G",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Root:              "./storage",
			Categories:        DefaultCategories(),
			AllowedExtensions: DefaultAllowedExtensions(),
			PartialMaxAge:     24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Path:       "",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Health: HealthConfig{
			CheckInterval:  15 * time.Minute,
			LowDiskPercent: 10,
		},
		Watcher: WatcherConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
		Scheduler: SchedulerConfig{
			PartialSweepInterval: 6 * time.Hour,
		},
	}
}

// DefaultCategories returns the built-in extension-to-category table.
func DefaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{Label: "Images", Extensions: []string{"png", "jpg", "jpeg", "gif", "svg"}},
		{Label: "Documents", Extensions: []string{"pdf", "docx", "txt", "pptx", "xlsx"}},
		{Label: "Videos", Extensions: []string{"mp4", "mov", "avi", "mkv"}},
		{Label: "Archives", Extensions: []string{"zip", "rar", "tar", "gz"}},
	}
}

// DefaultAllowedExtensions returns the built-in upload allow-list.
// Independent of the category table: an extension may be allowed without
// belonging to a category, and vice versa.
func DefaultAllowedExtensions() []string {
	return []string{"txt", "pdf", "png", "jpg", "jpeg", "gif", "zip", "mp4", "docx", "xlsx", "yml", "yaml"}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.driftwood")
		v.AddConfigPath("/etc/driftwood")
	}

	// Environment variable settings
	v.SetEnvPrefix("DRIFTWOOD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	// Unmarshal into struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	def := Default()

	// Server defaults
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.cors_origins", def.Server.CORSOrigins)
	v.SetDefault("server.body_limit", def.Server.BodyLimit)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)

	// Storage defaults
	v.SetDefault("storage.root", def.Storage.Root)
	v.SetDefault("storage.allowed_extensions", def.Storage.AllowedExtensions)
	v.SetDefault("storage.partial_max_age", def.Storage.PartialMaxAge)
	categories := make([]map[string]interface{}, 0, len(def.Storage.Categories))
	for _, c := range def.Storage.Categories {
		categories = append(categories, map[string]interface{}{
			"label":      c.Label,
			"extensions": c.Extensions,
		})
	}
	v.SetDefault("storage.categories", categories)

	// Logging defaults
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.path", def.Logging.Path)
	v.SetDefault("logging.max_size_mb", def.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", def.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", def.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", def.Logging.Compress)

	// Health defaults
	v.SetDefault("health.check_interval", def.Health.CheckInterval)
	v.SetDefault("health.low_disk_percent", def.Health.LowDiskPercent)

	// Watcher defaults
	v.SetDefault("watcher.enabled", def.Watcher.Enabled)
	v.SetDefault("watcher.debounce", def.Watcher.Debounce)

	// Scheduler defaults
	v.SetDefault("scheduler.partial_sweep_interval", def.Scheduler.PartialSweepInterval)
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if len(c.Storage.Categories) == 0 {
		return fmt.Errorf("storage.categories must not be empty")
	}
	for _, cat := range c.Storage.Categories {
		if cat.Label == "" {
			return fmt.Errorf("storage.categories entry with empty label")
		}
		if len(cat.Extensions) == 0 {
			return fmt.Errorf("storage.categories %q has no extensions", cat.Label)
		}
	}
	if len(c.Storage.AllowedExtensions) == 0 {
		return fmt.Errorf("storage.allowed_extensions must not be empty")
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WriteDefault writes the default configuration as YAML to path.
// Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	def := Default()

	categories := make([]map[string]interface{}, 0, len(def.Storage.Categories))
	for _, c := range def.Storage.Categories {
		categories = append(categories, map[string]interface{}{
			"label":      c.Label,
			"extensions": c.Extensions,
		})
	}

	// Durations are written in their string form so the generated file
	// stays human-editable.
	doc := map[string]interface{}{
		"server": map[string]interface{}{
			"host":             def.Server.Host,
			"port":             def.Server.Port,
			"cors_origins":     def.Server.CORSOrigins,
			"body_limit":       def.Server.BodyLimit,
			"shutdown_timeout": def.Server.ShutdownTimeout.String(),
		},
		"storage": map[string]interface{}{
			"root":               def.Storage.Root,
			"categories":         categories,
			"allowed_extensions": def.Storage.AllowedExtensions,
			"partial_max_age":    def.Storage.PartialMaxAge.String(),
		},
		"logging": map[string]interface{}{
			"level":        def.Logging.Level,
			"format":       def.Logging.Format,
			"path":         def.Logging.Path,
			"max_size_mb":  def.Logging.MaxSizeMB,
			"max_backups":  def.Logging.MaxBackups,
			"max_age_days": def.Logging.MaxAgeDays,
			"compress":     def.Logging.Compress,
		},
		"health": map[string]interface{}{
			"check_interval":   def.Health.CheckInterval.String(),
			"low_disk_percent": def.Health.LowDiskPercent,
		},
		"watcher": map[string]interface{}{
			"enabled":  def.Watcher.Enabled,
			"debounce": def.Watcher.Debounce.String(),
		},
		"scheduler": map[string]interface{}{
			"partial_sweep_interval": def.Scheduler.PartialSweepInterval.String(),
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// FindAvailablePort returns the first free TCP port at or after start,
// probing at most attempts ports.
func FindAvailablePort(start, attempts int) (int, error) {
	for port := start; port < start+attempts; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no available port in range %d-%d", start, start+attempts-1)
}
