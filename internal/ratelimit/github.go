package ratelimit

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/kpihub/scmscan/models"
)

// GitHubMonitor reads the real quota from the GitHub rate-limit API.
type GitHubMonitor struct{}

func (GitHubMonitor) Check(ctx context.Context, token, baseURL string) (Status, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := gogithub.NewClient(oauth2.NewClient(ctx, ts))

	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return Status{}, fmt.Errorf("configuring GitHub enterprise URL: %w", err)
		}
	}

	limits, _, err := client.RateLimit.Get(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("querying GitHub rate limit: %w", err)
	}

	core := limits.GetCore()
	if core == nil {
		return Status{}, fmt.Errorf("GitHub rate-limit response missing core resource")
	}
	return Status{
		Platform:  models.ToolTypeGitHub,
		Used:      core.Limit - core.Remaining,
		Remaining: core.Remaining,
		Limit:     core.Limit,
		ResetTime: core.Reset.Time,
	}, nil
}

func (GitHubMonitor) DefaultThreshold() float64 { return 0.8 }
