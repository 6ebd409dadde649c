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

// Bitbucket implements the three fetch services against the Bitbucket
// Cloud 2.0 REST API.
type Bitbucket struct {
	rl     *ratelimit.Service
	client *http.Client
}

// NewBitbucket creates the Bitbucket platform service.
func NewBitbucket(rl *ratelimit.Service) *Bitbucket {
	return &Bitbucket{rl: rl, client: &http.Client{Timeout: 60 * time.Second}}
}

func (b *Bitbucket) baseURL(spec FetchSpec) string {
	if spec.BaseURL != "" {
		return strings.TrimSuffix(spec.BaseURL, "/")
	}
	return "https://api.bitbucket.org/2.0"
}

// do issues one authenticated request. Bitbucket app passwords authenticate
// as username:token basic auth; this quirk stays contained here.
func (b *Bitbucket) do(ctx context.Context, spec FetchSpec, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(spec.Username, spec.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bitbucket API error %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

type bbCommitPage struct {
	Values []struct {
		Hash    string    `json:"hash"`
		Date    time.Time `json:"date"`
		Message string    `json:"message"`
		Author  struct {
			Raw  string `json:"raw"`
			User struct {
				DisplayName string `json:"display_name"`
				Nickname    string `json:"nickname"`
			} `json:"user"`
		} `json:"author"`
	} `json:"values"`
	Next string `json:"next"`
}

func (b *Bitbucket) FetchCommits(ctx context.Context, spec FetchSpec) ([]models.Commit, error) {
	// The commits endpoint has no date filter; walk newest-first and stop
	// at the window boundary.
	next := fmt.Sprintf("%s/repositories/%s/%s/commits/%s?pagelen=%d",
		b.baseURL(spec), spec.Path.Owner, spec.Path.Repo,
		url.PathEscape(spec.Branch), perPage(spec))

	var commits []models.Commit
	for next != "" {
		if err := b.rl.CheckRateLimit(ctx, models.ToolTypeBitbucket, spec.Token, spec.RepoName(), spec.BaseURL); err != nil {
			return nil, err
		}
		data, err := b.do(ctx, spec, next)
		if err != nil {
			return partialOK(models.ToolTypeBitbucket, "commits", commits, err)
		}
		var page bbCommitPage
		if err := json.Unmarshal(data, &page); err != nil {
			return partialOK(models.ToolTypeBitbucket, "commits", commits, err)
		}
		for _, c := range page.Values {
			if c.Date.Before(spec.Since) {
				return commits, nil
			}
			if !inWindow(c.Date, spec.Since, spec.Until) {
				continue
			}
			name, email := splitRawAuthor(c.Author.Raw)
			if c.Author.User.DisplayName != "" {
				name = c.Author.User.DisplayName
			}
			commits = append(commits, models.Commit{
				ToolConfigID: spec.ToolConfigID,
				RevisionID:   c.Hash,
				AuthorName:   name,
				AuthorEmail:  email,
				Message:      c.Message,
				Branch:       spec.Branch,
				CommittedAt:  c.Date,
			})
		}
		next = page.Next
	}
	return commits, nil
}

type bbPullRequestPage struct {
	Values []struct {
		ID     int64  `json:"id"`
		Title  string `json:"title"`
		State  string `json:"state"`
		Author struct {
			DisplayName string `json:"display_name"`
			Nickname    string `json:"nickname"`
		} `json:"author"`
		CreatedOn time.Time `json:"created_on"`
		UpdatedOn time.Time `json:"updated_on"`
		Source    struct {
			Branch struct {
				Name string `json:"name"`
			} `json:"branch"`
		} `json:"source"`
		Destination struct {
			Branch struct {
				Name string `json:"name"`
			} `json:"branch"`
		} `json:"destination"`
	} `json:"values"`
	Next string `json:"next"`
}

func (b *Bitbucket) FetchMergeRequests(ctx context.Context, spec FetchSpec) ([]models.MergeRequest, error) {
	// Server-side window filter via the q parameter.
	q := fmt.Sprintf(`updated_on >= "%s"`, spec.Since.UTC().Format(time.RFC3339))
	if spec.Until != nil {
		q += fmt.Sprintf(` AND updated_on < "%s"`, spec.Until.UTC().Format(time.RFC3339))
	}
	next := fmt.Sprintf("%s/repositories/%s/%s/pullrequests?state=OPEN&state=MERGED&state=DECLINED&state=SUPERSEDED&pagelen=%d&q=%s",
		b.baseURL(spec), spec.Path.Owner, spec.Path.Repo, perPage(spec), url.QueryEscape(q))

	var mrs []models.MergeRequest
	for next != "" {
		if err := b.rl.CheckRateLimit(ctx, models.ToolTypeBitbucket, spec.Token, spec.RepoName(), spec.BaseURL); err != nil {
			return nil, err
		}
		data, err := b.do(ctx, spec, next)
		if err != nil {
			return partialOK(models.ToolTypeBitbucket, "merge requests", mrs, err)
		}
		var page bbPullRequestPage
		if err := json.Unmarshal(data, &page); err != nil {
			return partialOK(models.ToolTypeBitbucket, "merge requests", mrs, err)
		}
		for _, pr := range page.Values {
			state := models.NormalizeMRState(pr.State, pr.State == "MERGED")
			mr := models.MergeRequest{
				ToolConfigID: spec.ToolConfigID,
				ExternalID:   fmt.Sprintf("%d", pr.ID),
				Title:        pr.Title,
				AuthorName:   pr.Author.DisplayName,
				State:        state,
				CreatedOn:    pr.CreatedOn,
				UpdatedOn:    pr.UpdatedOn,
				SourceBranch: pr.Source.Branch.Name,
				TargetBranch: pr.Destination.Branch.Name,
			}
			if state != models.MRStateOpen {
				t := pr.UpdatedOn
				mr.ClosedOn = &t
			}
			mrs = append(mrs, mr)
		}
		next = page.Next
	}
	return mrs, nil
}

func (b *Bitbucket) FetchRepository(ctx context.Context, spec FetchSpec) (*models.Repository, error) {
	if err := b.rl.CheckRateLimit(ctx, models.ToolTypeBitbucket, spec.Token, spec.RepoName(), spec.BaseURL); err != nil {
		return nil, err
	}
	data, err := b.do(ctx, spec, fmt.Sprintf("%s/repositories/%s/%s",
		b.baseURL(spec), spec.Path.Owner, spec.Path.Repo))
	if err != nil {
		return nil, &APIError{Platform: models.ToolTypeBitbucket, Op: "repository", Err: err}
	}

	var r struct {
		Name       string `json:"name"`
		MainBranch struct {
			Name string `json:"name"`
		} `json:"mainbranch"`
		Links struct {
			HTML struct {
				Href string `json:"href"`
			} `json:"html"`
		} `json:"links"`
		UpdatedOn time.Time `json:"updated_on"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &APIError{Platform: models.ToolTypeBitbucket, Op: "repository", Err: err}
	}
	return &models.Repository{
		ToolConfigID:  spec.ToolConfigID,
		Owner:         spec.Path.Owner,
		Name:          r.Name,
		DefaultBranch: r.MainBranch.Name,
		HTMLURL:       r.Links.HTML.Href,
		UpdatedOn:     r.UpdatedOn,
	}, nil
}

// splitRawAuthor parses the git "Name <email>" form Bitbucket reports.
func splitRawAuthor(raw string) (name, email string) {
	name = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '<'); i >= 0 {
		name = strings.TrimSpace(raw[:i])
		email = strings.TrimSuffix(strings.TrimSpace(raw[i+1:]), ">")
	}
	return name, email
}

var _ interface {
	CommitsService
	MergeRequestService
	RepositoryService
} = (*Bitbucket)(nil)
