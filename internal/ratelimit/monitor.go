package ratelimit

import (
	"context"
	"time"

	"github.com/kpihub/scmscan/models"
)

// Monitor queries or estimates one platform's current quota usage.
// Implementations must be safe for concurrent use by in-flight scans.
type Monitor interface {
	// Check returns the current quota snapshot for the given credentials.
	// Platforms without a genuine rate-limit API return a conservative
	// estimate instead of an error.
	Check(ctx context.Context, token, baseURL string) (Status, error)

	// DefaultThreshold is the usage fraction above which scans should wait.
	DefaultThreshold() float64
}

// estimatedStatus builds the conservative snapshot used for platforms that
// expose no quota signal: half of a nominal budget, resetting in an hour.
// A missing signal must never block a legitimate scan.
func estimatedStatus(platform models.ToolType, limit int) Status {
	return Status{
		Platform:  platform,
		Used:      limit / 2,
		Remaining: limit - limit/2,
		Limit:     limit,
		ResetTime: time.Now().Add(time.Hour),
		Estimated: true,
	}
}

// BitbucketMonitor estimates quota for Bitbucket: the 2.0 API enforces
// hourly limits but does not report usage.
type BitbucketMonitor struct{}

func (BitbucketMonitor) Check(ctx context.Context, token, baseURL string) (Status, error) {
	return estimatedStatus(models.ToolTypeBitbucket, 1000), nil
}

func (BitbucketMonitor) DefaultThreshold() float64 { return 0.9 }

// AzureMonitor estimates quota for Azure DevOps, which throttles via TSTUs
// without a queryable budget.
type AzureMonitor struct{}

func (AzureMonitor) Check(ctx context.Context, token, baseURL string) (Status, error) {
	return estimatedStatus(models.ToolTypeAzure, 200), nil
}

func (AzureMonitor) DefaultThreshold() float64 { return 0.9 }
