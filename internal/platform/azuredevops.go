package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kpihub/scmscan/internal/ratelimit"
	"github.com/kpihub/scmscan/models"
)

// Azure implements the three fetch services against the Azure DevOps REST
// API v7.1.
type Azure struct {
	rl     *ratelimit.Service
	org    string
	client *http.Client
}

// NewAzure creates the Azure DevOps platform service. org is the
// organisation used when the repository URL does not carry one.
func NewAzure(rl *ratelimit.Service, org string) *Azure {
	return &Azure{rl: rl, org: org, client: &http.Client{Timeout: 60 * time.Second}}
}

// projectURL returns {base}/{org}/{project} for the spec. Path.Project is
// "org/project" when parsed from a dev.azure.com URL.
func (a *Azure) projectURL(spec FetchSpec) string {
	base := "https://dev.azure.com"
	if spec.BaseURL != "" {
		base = strings.TrimSuffix(spec.BaseURL, "/")
	}
	project := spec.Path.Project
	if !strings.Contains(project, "/") && a.org != "" {
		project = a.org + "/" + project
	}
	return base + "/" + project
}

func (a *Azure) do(ctx context.Context, spec FetchSpec, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	// PATs authenticate as basic auth with an empty user.
	req.SetBasicAuth("", spec.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("azure DevOps API error %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

type azCommitPage struct {
	Value []struct {
		CommitID string `json:"commitId"`
		Author   struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
		Comment      string `json:"comment"`
		ChangeCounts struct {
			Add    int `json:"Add"`
			Edit   int `json:"Edit"`
			Delete int `json:"Delete"`
		} `json:"changeCounts"`
	} `json:"value"`
	Count int `json:"count"`
}

func (a *Azure) FetchCommits(ctx context.Context, spec FetchSpec) ([]models.Commit, error) {
	top := perPage(spec)
	skip := 0

	var commits []models.Commit
	for {
		if err := a.rl.CheckRateLimit(ctx, models.ToolTypeAzure, spec.Token, spec.RepoName(), spec.BaseURL); err != nil {
			return nil, err
		}
		urlStr := fmt.Sprintf(
			"%s/_apis/git/repositories/%s/commits?searchCriteria.itemVersion.version=%s&searchCriteria.fromDate=%s&$top=%d&$skip=%d&api-version=7.1",
			a.projectURL(spec), url.PathEscape(spec.Path.Repo), url.QueryEscape(spec.Branch),
			url.QueryEscape(spec.Since.UTC().Format(time.RFC3339)), top, skip)
		if spec.Until != nil {
			urlStr += "&searchCriteria.toDate=" + url.QueryEscape(spec.Until.UTC().Format(time.RFC3339))
		}

		data, err := a.do(ctx, spec, urlStr)
		if err != nil {
			return partialOK(models.ToolTypeAzure, "commits", commits, err)
		}
		var page azCommitPage
		if err := json.Unmarshal(data, &page); err != nil {
			return partialOK(models.ToolTypeAzure, "commits", commits, err)
		}
		for _, c := range page.Value {
			commits = append(commits, models.Commit{
				ToolConfigID: spec.ToolConfigID,
				RevisionID:   c.CommitID,
				AuthorName:   c.Author.Name,
				AuthorEmail:  c.Author.Email,
				Message:      c.Comment,
				Branch:       spec.Branch,
				CommittedAt:  c.Author.Date,
				Additions:    c.ChangeCounts.Add,
				Deletions:    c.ChangeCounts.Delete,
				FilesChanged: c.ChangeCounts.Add + c.ChangeCounts.Edit + c.ChangeCounts.Delete,
			})
		}
		if len(page.Value) < top {
			return commits, nil
		}
		skip += top
	}
}

type azPullRequestPage struct {
	Value []struct {
		PullRequestID int64  `json:"pullRequestId"`
		Title         string `json:"title"`
		Status        string `json:"status"`
		CreatedBy     struct {
			DisplayName string `json:"displayName"`
			UniqueName  string `json:"uniqueName"`
		} `json:"createdBy"`
		CreationDate  time.Time  `json:"creationDate"`
		ClosedDate    *time.Time `json:"closedDate"`
		SourceRefName string     `json:"sourceRefName"`
		TargetRefName string     `json:"targetRefName"`
	} `json:"value"`
	Count int `json:"count"`
}

func (a *Azure) FetchMergeRequests(ctx context.Context, spec FetchSpec) ([]models.MergeRequest, error) {
	top := perPage(spec)
	skip := 0

	var mrs []models.MergeRequest
	for {
		if err := a.rl.CheckRateLimit(ctx, models.ToolTypeAzure, spec.Token, spec.RepoName(), spec.BaseURL); err != nil {
			return nil, err
		}
		urlStr := fmt.Sprintf(
			"%s/_apis/git/repositories/%s/pullrequests?searchCriteria.status=all&$top=%d&$skip=%d&api-version=7.1",
			a.projectURL(spec), url.PathEscape(spec.Path.Repo), top, skip)

		data, err := a.do(ctx, spec, urlStr)
		if err != nil {
			return partialOK(models.ToolTypeAzure, "merge requests", mrs, err)
		}
		var page azPullRequestPage
		if err := json.Unmarshal(data, &page); err != nil {
			return partialOK(models.ToolTypeAzure, "merge requests", mrs, err)
		}
		for _, pr := range page.Value {
			// The API has no updated-since filter; the activity timestamp
			// is the close date for finished PRs, creation date otherwise.
			updated := pr.CreationDate
			if pr.ClosedDate != nil {
				updated = *pr.ClosedDate
			}
			if !inWindow(updated, spec.Since, spec.Until) {
				continue
			}
			mrs = append(mrs, models.MergeRequest{
				ToolConfigID: spec.ToolConfigID,
				ExternalID:   fmt.Sprintf("%d", pr.PullRequestID),
				Title:        pr.Title,
				AuthorName:   pr.CreatedBy.DisplayName,
				AuthorEmail:  pr.CreatedBy.UniqueName,
				State:        models.NormalizeMRState(pr.Status, pr.Status == "completed"),
				CreatedOn:    pr.CreationDate,
				UpdatedOn:    updated,
				ClosedOn:     pr.ClosedDate,
				SourceBranch: strings.TrimPrefix(pr.SourceRefName, "refs/heads/"),
				TargetBranch: strings.TrimPrefix(pr.TargetRefName, "refs/heads/"),
			})
		}
		if len(page.Value) < top {
			return mrs, nil
		}
		skip += top
	}
}

func (a *Azure) FetchRepository(ctx context.Context, spec FetchSpec) (*models.Repository, error) {
	if err := a.rl.CheckRateLimit(ctx, models.ToolTypeAzure, spec.Token, spec.RepoName(), spec.BaseURL); err != nil {
		return nil, err
	}
	urlStr := fmt.Sprintf("%s/_apis/git/repositories/%s?api-version=7.1",
		a.projectURL(spec), url.PathEscape(spec.Path.Repo))
	data, err := a.do(ctx, spec, urlStr)
	if err != nil {
		return nil, &APIError{Platform: models.ToolTypeAzure, Op: "repository", Err: err}
	}

	var r struct {
		Name          string `json:"name"`
		DefaultBranch string `json:"defaultBranch"`
		WebURL        string `json:"webUrl"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &APIError{Platform: models.ToolTypeAzure, Op: "repository", Err: err}
	}
	return &models.Repository{
		ToolConfigID:  spec.ToolConfigID,
		Owner:         spec.Path.Owner,
		Name:          r.Name,
		DefaultBranch: strings.TrimPrefix(r.DefaultBranch, "refs/heads/"),
		HTMLURL:       r.WebURL,
	}, nil
}

var _ interface {
	CommitsService
	MergeRequestService
	RepositoryService
} = (*Azure)(nil)
