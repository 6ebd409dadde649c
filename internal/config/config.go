package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".scmscan"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".scmscan/scmscan.db"
)

// Load reads the config file (falling back to defaults if absent) and returns
// a populated Config. The configPath flag may override the default location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("SCMSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
		// No config file yet — defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Database.Path = expandHome(cfg.Database.Path, home)
	cfg.Daemon.ReposFile = expandHome(cfg.Daemon.ReposFile, home)
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(configPath, data, 0o600)
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")

	v.SetDefault("scanner.first_scan_from_months", 6)
	v.SetDefault("scanner.scan_timeout_minutes", 120)
	v.SetDefault("scanner.verify_branch", false)
	v.SetDefault("scanner.rate_limit.enabled", true)
	v.SetDefault("scanner.rate_limit.threshold", 0.8)
	v.SetDefault("scanner.rate_limit.max_cooldown_hours", 24)
	v.SetDefault("scanner.rate_limit.fail_on_excessive_cooldown", false)
	v.SetDefault("scanner.pagination.per_page", 100)
	v.SetDefault("scanner.pagination.max_open_mr_pages", 10)

	v.SetDefault("daemon.cron", "@hourly")
	v.SetDefault("daemon.workers", 3)
	v.SetDefault("daemon.metrics_port", 0)
	v.SetDefault("daemon.repos_file", filepath.Join(home, DefaultConfigDir, "repos.yaml"))
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
