package giturl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpihub/scmscan/models"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		toolType models.ToolType
		repoName string
		want     RepoPath
	}{
		{
			name:     "github https",
			url:      "https://github.com/acme/widgets",
			toolType: models.ToolTypeGitHub,
			want:     RepoPath{Owner: "acme", Project: "acme", Repo: "widgets"},
		},
		{
			name:     "github https with .git suffix",
			url:      "https://github.com/acme/widgets.git",
			toolType: models.ToolTypeGitHub,
			want:     RepoPath{Owner: "acme", Project: "acme", Repo: "widgets"},
		},
		{
			name:     "scp-style ssh",
			url:      "git@github.com:acme/widgets.git",
			toolType: models.ToolTypeGitHub,
			want:     RepoPath{Owner: "acme", Project: "acme", Repo: "widgets"},
		},
		{
			name:     "gitlab nested subgroups",
			url:      "https://gitlab.com/group/sub/deep/widgets.git",
			toolType: models.ToolTypeGitLab,
			want:     RepoPath{Owner: "group", Project: "group/sub/deep", Repo: "widgets"},
		},
		{
			name:     "bitbucket workspace",
			url:      "https://bitbucket.org/acme/widgets",
			toolType: models.ToolTypeBitbucket,
			want:     RepoPath{Owner: "acme", Project: "acme", Repo: "widgets"},
		},
		{
			name:     "azure dev.azure.com",
			url:      "https://dev.azure.com/acme/platform/_git/widgets",
			toolType: models.ToolTypeAzure,
			want:     RepoPath{Owner: "acme", Project: "acme/platform", Repo: "widgets"},
		},
		{
			name:     "azure visualstudio.com",
			url:      "https://acme.visualstudio.com/platform/_git/widgets",
			toolType: models.ToolTypeAzure,
			want:     RepoPath{Owner: "acme", Project: "acme/platform", Repo: "widgets"},
		},
		{
			name:     "azure ssh v3",
			url:      "git@ssh.dev.azure.com:v3/acme/platform/widgets",
			toolType: models.ToolTypeAzure,
			want:     RepoPath{Owner: "acme", Project: "acme/platform", Repo: "widgets"},
		},
		{
			name:     "azure org url with separate repo name",
			url:      "https://dev.azure.com/acme/platform",
			toolType: models.ToolTypeAzure,
			repoName: "widgets",
			want:     RepoPath{Owner: "acme", Project: "acme/platform", Repo: "widgets"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.url, tc.toolType, "", tc.repoName)
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestParseRejectsUnusable(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		toolType models.ToolType
	}{
		{"empty", "", models.ToolTypeGitHub},
		{"no path", "https://github.com", models.ToolTypeGitHub},
		{"no host", "/acme/widgets", models.ToolTypeGitHub},
		{"azure without repo", "https://dev.azure.com/acme", models.ToolTypeAzure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.url, tc.toolType, "", "")
			assert.Error(t, err)
		})
	}
}

func TestFullPath(t *testing.T) {
	assert.Equal(t, "acme/widgets",
		RepoPath{Owner: "acme", Project: "acme", Repo: "widgets"}.FullPath())
	assert.Equal(t, "group/sub/widgets",
		RepoPath{Owner: "group", Project: "group/sub", Repo: "widgets"}.FullPath())
}
