package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpihub/scmscan/models"
)

func TestResolveFoldsIdentitiesByEmail(t *testing.T) {
	req := models.ScanRequest{ToolConfigID: "conn-1"}
	commits := []models.Commit{
		{AuthorName: "Ada", AuthorEmail: "ada@example.com"},
		{AuthorName: "Ada Lovelace", AuthorEmail: "ADA@example.com"},
		{AuthorName: "anonymous"},
	}
	mrs := []models.MergeRequest{
		{AuthorName: "Ada Lovelace", AuthorEmail: "ada@example.com"},
		{AuthorName: "Grace", AuthorEmail: "grace@example.com"},
	}

	index, users := UserResolver{}.Resolve(commits, mrs, req)

	// ada (case-folded email), anonymous (name-only), grace.
	require.Len(t, users, 3)
	require.Len(t, index, 3)
	for _, u := range users {
		assert.Equal(t, "conn-1", u.ToolConfigID)
	}

	ada := index["ada@example.com"]
	require.NotNil(t, ada)
	assert.Equal(t, "Ada", ada.DisplayName, "first sighting names the user")
}

func TestResolveFillsMissingFields(t *testing.T) {
	commits := []models.Commit{
		{AuthorEmail: "ada@example.com"}, // no display name yet
		{AuthorName: "Ada", AuthorEmail: "ada@example.com"},
	}
	index, users := UserResolver{}.Resolve(commits, nil, models.ScanRequest{})
	require.Len(t, users, 1)
	assert.Equal(t, "Ada", index["ada@example.com"].DisplayName)
}

func TestLinkCommitsStampsReferences(t *testing.T) {
	req := models.ScanRequest{ToolConfigID: "conn-1", ConnectionID: "proc-9"}
	commits := []models.Commit{
		{RevisionID: "aaa", AuthorName: "Ada", AuthorEmail: "ada@example.com"},
		{RevisionID: "bbb", AuthorName: "Nobody", AuthorEmail: "unknown@example.com"},
	}
	index := map[string]*models.User{
		"ada@example.com": {ID: 42},
	}

	UserResolver{}.LinkCommits(commits, index, req)

	assert.Equal(t, int64(42), commits[0].UserID)
	assert.Zero(t, commits[1].UserID)
	for _, c := range commits {
		assert.Equal(t, "conn-1", c.ToolConfigID)
		assert.Equal(t, "proc-9", c.ProcessorItemID)
	}
}

func TestLinkMergeRequestsStampsReferences(t *testing.T) {
	req := models.ScanRequest{ToolConfigID: "conn-1", ConnectionID: "proc-9"}
	mrs := []models.MergeRequest{
		{ExternalID: "7", AuthorName: "Grace", AuthorEmail: "grace@example.com"},
	}
	index := map[string]*models.User{
		"grace@example.com": {ID: 7},
	}

	UserResolver{}.LinkMergeRequests(mrs, index, req)

	assert.Equal(t, int64(7), mrs[0].UserID)
	assert.Equal(t, "conn-1", mrs[0].ToolConfigID)
	assert.Equal(t, "proc-9", mrs[0].ProcessorItemID)
}
