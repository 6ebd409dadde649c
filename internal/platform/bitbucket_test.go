package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpihub/scmscan/internal/config"
	"github.com/kpihub/scmscan/internal/giturl"
	"github.com/kpihub/scmscan/internal/ratelimit"
	"github.com/kpihub/scmscan/models"
)

func newBitbucketSpec(baseURL string) FetchSpec {
	return FetchSpec{
		ToolConfigID: "conn-1",
		Path:         giturl.RepoPath{Owner: "acme", Project: "acme", Repo: "widgets"},
		Branch:       "main",
		Username:     "bot",
		Token:        "app-password",
		BaseURL:      baseURL,
		Since:        time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		PerPage:      50,
	}
}

func testBitbucket() *Bitbucket {
	return NewBitbucket(ratelimit.NewService(config.RateLimitConfig{Enabled: false}))
}

func TestBitbucketFetchCommits(t *testing.T) {
	var gotAuth []string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		gotAuth = []string{user, pass}

		resp := map[string]any{
			"values": []map[string]any{
				{
					"hash":    "aaa",
					"date":    "2025-05-20T10:00:00+00:00",
					"message": "fix parser",
					"author": map[string]any{
						"raw": "Ada Lovelace <ada@example.com>",
					},
				},
				{
					"hash":    "bbb",
					"date":    "2025-04-01T10:00:00+00:00", // before the window: stops the walk
					"message": "old work",
					"author":  map[string]any{"raw": "Old Hand <old@example.com>"},
				},
			},
		}
		if r.URL.Query().Get("page") != "2" {
			resp["next"] = srv.URL + r.URL.Path + "?page=2"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	commits, err := testBitbucket().FetchCommits(context.Background(), newBitbucketSpec(srv.URL))
	require.NoError(t, err)

	// Username:token basic auth is the Bitbucket app-password scheme.
	assert.Equal(t, []string{"bot", "app-password"}, gotAuth)

	require.Len(t, commits, 1, "walk stops at the first commit before the window")
	assert.Equal(t, "aaa", commits[0].RevisionID)
	assert.Equal(t, "Ada Lovelace", commits[0].AuthorName)
	assert.Equal(t, "ada@example.com", commits[0].AuthorEmail)
	assert.Equal(t, "conn-1", commits[0].ToolConfigID)
	assert.Equal(t, "main", commits[0].Branch)
}

func TestBitbucketFetchMergeRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("q"), "updated_on >=")
		json.NewEncoder(w).Encode(map[string]any{
			"values": []map[string]any{
				{
					"id":    7,
					"title": "Add widgets",
					"state": "MERGED",
					"author": map[string]any{
						"display_name": "Grace",
					},
					"created_on": "2025-05-10T09:00:00+00:00",
					"updated_on": "2025-05-21T09:00:00+00:00",
					"source":     map[string]any{"branch": map[string]any{"name": "feature/widgets"}},
					"destination": map[string]any{
						"branch": map[string]any{"name": "main"},
					},
				},
				{
					"id":         8,
					"title":      "Rejected idea",
					"state":      "DECLINED",
					"author":     map[string]any{"display_name": "Mallory"},
					"created_on": "2025-05-11T09:00:00+00:00",
					"updated_on": "2025-05-22T09:00:00+00:00",
				},
			},
		})
	}))
	defer srv.Close()

	mrs, err := testBitbucket().FetchMergeRequests(context.Background(), newBitbucketSpec(srv.URL))
	require.NoError(t, err)
	require.Len(t, mrs, 2)

	assert.Equal(t, "7", mrs[0].ExternalID)
	assert.Equal(t, models.MRStateMerged, mrs[0].State)
	assert.Equal(t, "feature/widgets", mrs[0].SourceBranch)
	assert.Equal(t, "main", mrs[0].TargetBranch)
	require.NotNil(t, mrs[0].ClosedOn)
	assert.True(t, mrs[0].ClosedOn.Equal(mrs[0].UpdatedOn))

	assert.Equal(t, models.MRStateDeclined, mrs[1].State)
}

func TestBitbucketFetchRepository(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repositories/acme/widgets", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"name":       "widgets",
			"mainbranch": map[string]any{"name": "main"},
			"links": map[string]any{
				"html": map[string]any{"href": "https://bitbucket.org/acme/widgets"},
			},
		})
	}))
	defer srv.Close()

	repo, err := testBitbucket().FetchRepository(context.Background(), newBitbucketSpec(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "widgets", repo.Name)
	assert.Equal(t, "main", repo.DefaultBranch)
	assert.Equal(t, "https://bitbucket.org/acme/widgets", repo.HTMLURL)
}

func TestBitbucketErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testBitbucket().FetchCommits(context.Background(), newBitbucketSpec(srv.URL))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, models.ToolTypeBitbucket, apiErr.Platform)
	assert.Contains(t, err.Error(), fmt.Sprint(http.StatusForbidden))
}

func TestSplitRawAuthor(t *testing.T) {
	name, email := splitRawAuthor("Ada Lovelace <ada@example.com>")
	assert.Equal(t, "Ada Lovelace", name)
	assert.Equal(t, "ada@example.com", email)

	name, email = splitRawAuthor("just-a-name")
	assert.Equal(t, "just-a-name", name)
	assert.Empty(t, email)
}
