package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kpihub/scmscan/internal/config"
	"github.com/kpihub/scmscan/internal/metrics"
	"github.com/kpihub/scmscan/models"
)

// waitBuffer is added to every cooldown so the first request after resume
// lands safely past the platform's reset instant.
const waitBuffer = 30 * time.Second

// ExceededError is returned when a computed cooldown passes the configured
// maximum and the scanner is configured to fail rather than push through.
type ExceededError struct {
	Platform  models.ToolType
	Used      int
	Limit     int
	Threshold float64
	ResetTime time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded on %s: %d/%d used (threshold %.0f%%), resets at %s",
		e.Platform, e.Used, e.Limit, e.Threshold*100, e.ResetTime.Format(time.RFC3339))
}

// Service is the platform-agnostic rate-limit façade. The check itself is
// advisory: a missing or failing quota signal never aborts a scan. The wait
// on a threshold breach is a hard synchronous backoff, cancellable through
// the context.
//
// Quota is platform-global (shared by every repository using that platform
// and token), so one Service instance serves all concurrent scans.
type Service struct {
	cfg      config.RateLimitConfig
	monitors map[models.ToolType]Monitor
	now      func() time.Time
}

// NewService creates a Service with all four platform monitors registered.
func NewService(cfg config.RateLimitConfig) *Service {
	return &Service{
		cfg: cfg,
		monitors: map[models.ToolType]Monitor{
			models.ToolTypeGitHub:    GitHubMonitor{},
			models.ToolTypeGitLab:    NewGitLabMonitor(),
			models.ToolTypeBitbucket: BitbucketMonitor{},
			models.ToolTypeAzure:     AzureMonitor{},
		},
		now: time.Now,
	}
}

// CheckRateLimit checks the platform's quota and, if usage has crossed the
// threshold, blocks until the quota resets. A nil return means the caller
// may proceed with API calls.
func (s *Service) CheckRateLimit(ctx context.Context, platform models.ToolType, token, repoName, baseURL string) error {
	if !s.cfg.Enabled {
		return nil
	}
	if token == "" {
		slog.Debug("rate-limit check skipped: no token supplied", "platform", platform, "repo", repoName)
		return nil
	}
	monitor, ok := s.monitors[platform]
	if !ok {
		slog.Warn("rate-limit check skipped: no monitor for platform", "platform", platform)
		return nil
	}

	status, err := monitor.Check(ctx, token, baseURL)
	if err != nil {
		// Degrade to "assume OK": a failing signal must not block scans.
		slog.Warn("rate-limit check failed, continuing scan",
			"platform", platform, "repo", repoName, "error", err)
		return nil
	}

	threshold := s.cfg.Threshold
	if threshold <= 0 {
		threshold = monitor.DefaultThreshold()
	}
	if !status.ExceedsThreshold(threshold) {
		return nil
	}

	return s.throttle(ctx, status, threshold, repoName)
}

// throttle waits out the cooldown for a status past the threshold.
func (s *Service) throttle(ctx context.Context, status Status, threshold float64, repoName string) error {
	wait := status.ResetTime.Sub(s.now())
	if wait <= 0 {
		slog.Info("rate-limit quota already reset, continuing",
			"platform", status.Platform, "repo", repoName)
		return nil
	}

	maxCooldown := time.Duration(s.cfg.MaxCooldownHours) * time.Hour
	if maxCooldown > 0 && wait > maxCooldown {
		if s.cfg.FailOnExcessiveCooldown {
			return &ExceededError{
				Platform:  status.Platform,
				Used:      status.Used,
				Limit:     status.Limit,
				Threshold: threshold,
				ResetTime: status.ResetTime,
			}
		}
		slog.Warn("rate-limit cooldown exceeds maximum, skipping wait",
			"platform", status.Platform, "repo", repoName,
			"wait", wait, "max", maxCooldown)
		return nil
	}

	wait += waitBuffer
	slog.Info("rate-limit threshold reached, waiting for reset",
		"platform", status.Platform, "repo", repoName,
		"used", status.Used, "limit", status.Limit,
		"usage_pct", fmt.Sprintf("%.1f", status.UsagePercentage()*100),
		"wait", wait)

	metrics.RateLimitWaits.WithLabelValues(string(status.Platform)).Inc()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		// Cancellation resumes the scan immediately; the surrounding
		// job decides what a cancelled context means.
		slog.Info("rate-limit wait interrupted, resuming",
			"platform", status.Platform, "repo", repoName)
	}
	return nil
}
