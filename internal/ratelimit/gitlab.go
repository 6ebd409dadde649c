package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kpihub/scmscan/models"
)

// GitLabMonitor probes a cheap endpoint and reads the RateLimit-* response
// headers GitLab attaches when throttling is configured. Instances without
// throttling send no headers; those fall back to an estimate.
type GitLabMonitor struct {
	client *http.Client
}

// NewGitLabMonitor creates a monitor with a short probe timeout.
func NewGitLabMonitor() *GitLabMonitor {
	return &GitLabMonitor{client: &http.Client{Timeout: 10 * time.Second}}
}

func (g *GitLabMonitor) Check(ctx context.Context, token, baseURL string) (Status, error) {
	base := strings.TrimSuffix(baseURL, "/")
	if base == "" {
		base = "https://gitlab.com"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v4/version", nil)
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("PRIVATE-TOKEN", token)

	resp, err := g.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("probing GitLab rate limit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Status{}, fmt.Errorf("GitLab rate-limit probe rejected: HTTP %d", resp.StatusCode)
	}

	limit, lerr := strconv.Atoi(resp.Header.Get("RateLimit-Limit"))
	observed, oerr := strconv.Atoi(resp.Header.Get("RateLimit-Observed"))
	if lerr != nil || oerr != nil || limit == 0 {
		return estimatedStatus(models.ToolTypeGitLab, 2000), nil
	}

	reset := time.Now().Add(time.Minute)
	if epoch, err := strconv.ParseInt(resp.Header.Get("RateLimit-Reset"), 10, 64); err == nil {
		reset = time.Unix(epoch, 0)
	}
	remaining, _ := strconv.Atoi(resp.Header.Get("RateLimit-Remaining"))

	return Status{
		Platform:  models.ToolTypeGitLab,
		Used:      observed,
		Remaining: remaining,
		Limit:     limit,
		ResetTime: reset,
	}, nil
}

func (g *GitLabMonitor) DefaultThreshold() float64 { return 0.8 }
