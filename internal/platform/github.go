package platform

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/kpihub/scmscan/internal/ratelimit"
	"github.com/kpihub/scmscan/models"
)

// GitHub implements the three fetch services for GitHub and GitHub
// Enterprise via google/go-github.
type GitHub struct {
	rl *ratelimit.Service
}

// NewGitHub creates the GitHub platform service.
func NewGitHub(rl *ratelimit.Service) *GitHub {
	return &GitHub{rl: rl}
}

// client builds a go-github client for the spec's credentials. Clients are
// per-call because tokens arrive with each ScanRequest.
func (g *GitHub) client(ctx context.Context, spec FetchSpec) (*gogithub.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: spec.Token})
	client := gogithub.NewClient(oauth2.NewClient(ctx, ts))
	if spec.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(spec.BaseURL, spec.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URL: %w", err)
		}
	}
	return client, nil
}

func (g *GitHub) FetchCommits(ctx context.Context, spec FetchSpec) ([]models.Commit, error) {
	client, err := g.client(ctx, spec)
	if err != nil {
		return nil, &APIError{Platform: models.ToolTypeGitHub, Op: "commits", Err: err}
	}

	opts := &gogithub.CommitsListOptions{
		SHA:         spec.Branch,
		Since:       spec.Since,
		ListOptions: gogithub.ListOptions{PerPage: perPage(spec)},
	}
	if spec.Until != nil {
		opts.Until = *spec.Until
	}

	var commits []models.Commit
	for {
		if err := g.rl.CheckRateLimit(ctx, models.ToolTypeGitHub, spec.Token, spec.RepoName(), spec.BaseURL); err != nil {
			return nil, err
		}
		page, resp, err := client.Repositories.ListCommits(ctx, spec.Path.Owner, spec.Path.Repo, opts)
		if err != nil {
			return partialOK(models.ToolTypeGitHub, "commits", commits, err)
		}
		for _, c := range page {
			if c == nil {
				continue
			}
			commit := models.Commit{
				ToolConfigID: spec.ToolConfigID,
				RevisionID:   c.GetSHA(),
				AuthorName:   c.GetCommit().GetAuthor().GetName(),
				AuthorEmail:  c.GetCommit().GetAuthor().GetEmail(),
				Message:      c.GetCommit().GetMessage(),
				Branch:       spec.Branch,
				CommittedAt:  c.GetCommit().GetCommitter().GetDate().Time,
			}
			if stats := c.GetStats(); stats != nil {
				commit.Additions = stats.GetAdditions()
				commit.Deletions = stats.GetDeletions()
			}
			commits = append(commits, commit)
		}
		if resp.NextPage == 0 {
			return commits, nil
		}
		opts.Page = resp.NextPage
	}
}

func (g *GitHub) FetchMergeRequests(ctx context.Context, spec FetchSpec) ([]models.MergeRequest, error) {
	client, err := g.client(ctx, spec)
	if err != nil {
		return nil, &APIError{Platform: models.ToolTypeGitHub, Op: "merge requests", Err: err}
	}

	// The PR list API has no "updated since" filter; sort by update
	// descending and stop paging once results fall out of the window.
	opts := &gogithub.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gogithub.ListOptions{PerPage: perPage(spec)},
	}

	var mrs []models.MergeRequest
	for {
		if err := g.rl.CheckRateLimit(ctx, models.ToolTypeGitHub, spec.Token, spec.RepoName(), spec.BaseURL); err != nil {
			return nil, err
		}
		page, resp, err := client.PullRequests.List(ctx, spec.Path.Owner, spec.Path.Repo, opts)
		if err != nil {
			return partialOK(models.ToolTypeGitHub, "merge requests", mrs, err)
		}
		for _, pr := range page {
			if pr == nil {
				continue
			}
			updated := pr.GetUpdatedAt().Time
			if updated.Before(spec.Since) {
				return mrs, nil
			}
			if !inWindow(updated, spec.Since, spec.Until) {
				continue
			}
			mrs = append(mrs, convertGitHubPR(pr, spec))
		}
		if resp.NextPage == 0 {
			return mrs, nil
		}
		opts.Page = resp.NextPage
	}
}

func (g *GitHub) FetchRepository(ctx context.Context, spec FetchSpec) (*models.Repository, error) {
	client, err := g.client(ctx, spec)
	if err != nil {
		return nil, &APIError{Platform: models.ToolTypeGitHub, Op: "repository", Err: err}
	}
	if err := g.rl.CheckRateLimit(ctx, models.ToolTypeGitHub, spec.Token, spec.RepoName(), spec.BaseURL); err != nil {
		return nil, err
	}

	r, _, err := client.Repositories.Get(ctx, spec.Path.Owner, spec.Path.Repo)
	if err != nil {
		return nil, &APIError{Platform: models.ToolTypeGitHub, Op: "repository", Err: err}
	}
	return &models.Repository{
		ToolConfigID:  spec.ToolConfigID,
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		DefaultBranch: r.GetDefaultBranch(),
		HTMLURL:       r.GetHTMLURL(),
		UpdatedOn:     r.GetPushedAt().Time,
	}, nil
}

func convertGitHubPR(pr *gogithub.PullRequest, spec FetchSpec) models.MergeRequest {
	mr := models.MergeRequest{
		ToolConfigID: spec.ToolConfigID,
		ExternalID:   fmt.Sprintf("%d", pr.GetNumber()),
		Title:        pr.GetTitle(),
		AuthorName:   pr.GetUser().GetLogin(),
		State:        models.NormalizeMRState(pr.GetState(), pr.MergedAt != nil),
		CreatedOn:    pr.GetCreatedAt().Time,
		UpdatedOn:    pr.GetUpdatedAt().Time,
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		FilesChanged: pr.GetChangedFiles(),
	}
	if pr.ClosedAt != nil {
		t := pr.GetClosedAt().Time
		mr.ClosedOn = &t
	}
	return mr
}

func perPage(spec FetchSpec) int {
	if spec.PerPage > 0 {
		return spec.PerPage
	}
	return 100
}

var _ interface {
	CommitsService
	MergeRequestService
	RepositoryService
} = (*GitHub)(nil)
