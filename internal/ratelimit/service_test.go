package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpihub/scmscan/internal/config"
	"github.com/kpihub/scmscan/models"
)

type stubMonitor struct {
	status Status
	err    error
}

func (m stubMonitor) Check(ctx context.Context, token, baseURL string) (Status, error) {
	return m.status, m.err
}

func (m stubMonitor) DefaultThreshold() float64 { return 0.8 }

func newTestService(cfg config.RateLimitConfig, m Monitor, now time.Time) *Service {
	s := NewService(cfg)
	s.monitors[models.ToolTypeGitHub] = m
	s.now = func() time.Time { return now }
	return s
}

func TestCheckRateLimitDisabled(t *testing.T) {
	s := newTestService(config.RateLimitConfig{Enabled: false}, stubMonitor{
		status: Status{Platform: models.ToolTypeGitHub, Used: 5000, Limit: 5000, ResetTime: time.Now().Add(time.Hour)},
	}, time.Now())

	err := s.CheckRateLimit(context.Background(), models.ToolTypeGitHub, "tok", "acme/widgets", "")
	assert.NoError(t, err)
}

func TestCheckRateLimitNoToken(t *testing.T) {
	s := newTestService(config.RateLimitConfig{Enabled: true, Threshold: 0.8}, stubMonitor{
		status: Status{Platform: models.ToolTypeGitHub, Used: 5000, Limit: 5000, ResetTime: time.Now().Add(time.Hour)},
	}, time.Now())

	err := s.CheckRateLimit(context.Background(), models.ToolTypeGitHub, "", "acme/widgets", "")
	assert.NoError(t, err)
}

func TestCheckRateLimitNoMonitorRegistered(t *testing.T) {
	s := NewService(config.RateLimitConfig{Enabled: true, Threshold: 0.8})
	err := s.CheckRateLimit(context.Background(), models.ToolType("svn"), "tok", "acme/widgets", "")
	assert.NoError(t, err)
}

func TestCheckRateLimitMonitorFailureDegrades(t *testing.T) {
	s := newTestService(config.RateLimitConfig{Enabled: true, Threshold: 0.8},
		stubMonitor{err: errors.New("api unreachable")}, time.Now())

	err := s.CheckRateLimit(context.Background(), models.ToolTypeGitHub, "tok", "acme/widgets", "")
	assert.NoError(t, err)
}

func TestCheckRateLimitBelowThreshold(t *testing.T) {
	now := time.Now()
	s := newTestService(config.RateLimitConfig{Enabled: true, Threshold: 0.8}, stubMonitor{
		status: Status{Platform: models.ToolTypeGitHub, Used: 100, Limit: 5000, ResetTime: now.Add(time.Hour)},
	}, now)

	err := s.CheckRateLimit(context.Background(), models.ToolTypeGitHub, "tok", "acme/widgets", "")
	assert.NoError(t, err)
}

func TestCheckRateLimitQuotaAlreadyReset(t *testing.T) {
	now := time.Now()
	s := newTestService(config.RateLimitConfig{Enabled: true, Threshold: 0.8}, stubMonitor{
		status: Status{Platform: models.ToolTypeGitHub, Used: 5000, Limit: 5000, ResetTime: now.Add(-time.Minute)},
	}, now)

	err := s.CheckRateLimit(context.Background(), models.ToolTypeGitHub, "tok", "acme/widgets", "")
	assert.NoError(t, err)
}

func TestCheckRateLimitExcessiveCooldownFails(t *testing.T) {
	now := time.Now()
	s := newTestService(config.RateLimitConfig{
		Enabled:                 true,
		Threshold:               0.8,
		MaxCooldownHours:        1,
		FailOnExcessiveCooldown: true,
	}, stubMonitor{
		status: Status{Platform: models.ToolTypeGitHub, Used: 5000, Limit: 5000, ResetTime: now.Add(3 * time.Hour)},
	}, now)

	err := s.CheckRateLimit(context.Background(), models.ToolTypeGitHub, "tok", "acme/widgets", "")
	require.Error(t, err)

	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, models.ToolTypeGitHub, exceeded.Platform)
	assert.Equal(t, 5000, exceeded.Used)
}

func TestCheckRateLimitExcessiveCooldownSkipsWait(t *testing.T) {
	now := time.Now()
	s := newTestService(config.RateLimitConfig{
		Enabled:                 true,
		Threshold:               0.8,
		MaxCooldownHours:        1,
		FailOnExcessiveCooldown: false,
	}, stubMonitor{
		status: Status{Platform: models.ToolTypeGitHub, Used: 5000, Limit: 5000, ResetTime: now.Add(3 * time.Hour)},
	}, now)

	done := make(chan error, 1)
	go func() {
		done <- s.CheckRateLimit(context.Background(), models.ToolTypeGitHub, "tok", "acme/widgets", "")
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("check should skip the wait, not block")
	}
}

func TestCheckRateLimitWaitCancellable(t *testing.T) {
	now := time.Now()
	s := newTestService(config.RateLimitConfig{
		Enabled:          true,
		Threshold:        0.8,
		MaxCooldownHours: 24,
	}, stubMonitor{
		status: Status{Platform: models.ToolTypeGitHub, Used: 5000, Limit: 5000, ResetTime: now.Add(2 * time.Hour)},
	}, now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.CheckRateLimit(ctx, models.ToolTypeGitHub, "tok", "acme/widgets", "")
	}()
	select {
	case err := <-done:
		// Cancellation resumes the scan; it is not an error.
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled context should end the wait immediately")
	}
}
