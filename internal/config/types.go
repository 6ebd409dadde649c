package config

// Config is the root configuration structure for scmscan.
// Serialised to ~/.scmscan/config.json.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"  json:"database"`
	Scanner   ScannerConfig   `mapstructure:"scanner"   json:"scanner"`
	Platforms PlatformsConfig `mapstructure:"platforms" json:"platforms"`
	Daemon    DaemonConfig    `mapstructure:"daemon"    json:"daemon"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// ScannerConfig controls incremental windowing, timeouts, and rate limiting.
type ScannerConfig struct {
	// FirstScanFromMonths bounds the historical window of a repository's
	// first-ever scan, and clamps the open-MR re-check lookback.
	FirstScanFromMonths int `mapstructure:"first_scan_from_months" json:"first_scan_from_months"`
	// ScanTimeoutMinutes bounds one repository scan end to end. A rate-limit
	// cooldown alone can legitimately take hours, so this defaults high.
	ScanTimeoutMinutes int              `mapstructure:"scan_timeout_minutes" json:"scan_timeout_minutes"`
	RateLimit          RateLimitConfig  `mapstructure:"rate_limit"           json:"rate_limit"`
	Pagination         PaginationConfig `mapstructure:"pagination"           json:"pagination"`
	// VerifyBranch enables a pre-flight ls-remote check that the requested
	// branch exists before any API paging starts.
	VerifyBranch bool `mapstructure:"verify_branch" json:"verify_branch"`
}

// RateLimitConfig controls quota governance for platform APIs.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Threshold is the usage fraction (0..1) above which the scanner waits
	// for quota reset before continuing.
	Threshold float64 `mapstructure:"threshold" json:"threshold"`
	// MaxCooldownHours caps the wait; a longer computed cooldown signals
	// clock skew or a platform outage.
	MaxCooldownHours int `mapstructure:"max_cooldown_hours" json:"max_cooldown_hours"`
	// FailOnExcessiveCooldown aborts the scan when the cap is exceeded
	// instead of skipping the wait.
	FailOnExcessiveCooldown bool `mapstructure:"fail_on_excessive_cooldown" json:"fail_on_excessive_cooldown"`
}

// PaginationConfig bounds per-scan paging.
type PaginationConfig struct {
	PerPage int `mapstructure:"per_page" json:"per_page"`
	// MaxOpenMRPages caps the number of pages read back from storage when
	// re-checking open merge requests.
	MaxOpenMRPages int `mapstructure:"max_open_mr_pages" json:"max_open_mr_pages"`
}

// PlatformsConfig holds per-platform API endpoints and default credentials.
// Credentials on a ScanRequest take precedence over these.
type PlatformsConfig struct {
	GitHub    PlatformConfig `mapstructure:"github"    json:"github"`
	GitLab    PlatformConfig `mapstructure:"gitlab"    json:"gitlab"`
	Bitbucket PlatformConfig `mapstructure:"bitbucket" json:"bitbucket"`
	Azure     AzureConfig    `mapstructure:"azure"     json:"azure"`
}

// PlatformConfig holds the endpoint and credentials for one platform instance.
type PlatformConfig struct {
	// BaseURL overrides the public API endpoint (self-hosted / enterprise).
	BaseURL  string `mapstructure:"base_url" json:"base_url"`
	Token    string `mapstructure:"token"    json:"token"`
	Username string `mapstructure:"username" json:"username"`
}

// AzureConfig holds credentials for an Azure DevOps organisation.
type AzureConfig struct {
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	Token   string `mapstructure:"token"    json:"token"`
	Org     string `mapstructure:"org"      json:"org"`
}

// DaemonConfig controls the scheduled-scan daemon.
type DaemonConfig struct {
	// Cron is the schedule expression for periodic scans.
	Cron string `mapstructure:"cron" json:"cron"`
	// Workers is the number of repository scans allowed to run concurrently.
	Workers int `mapstructure:"workers" json:"workers"`
	// MetricsPort is the localhost port serving /metrics (0 disables).
	MetricsPort int `mapstructure:"metrics_port" json:"metrics_port"`
	// ReposFile is the YAML file listing repositories to scan.
	ReposFile string `mapstructure:"repos_file" json:"repos_file"`
}
