package giturl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kpihub/scmscan/models"
)

// RepoPath is the structured identity of one repository, parsed from its URL.
// Project carries the full namespace for platforms with nested groups
// (GitLab subgroups, Azure DevOps org/project).
type RepoPath struct {
	Owner   string
	Project string
	Repo    string
}

// FullPath renders the path the platform API expects for this repository.
func (p RepoPath) FullPath() string {
	if p.Project != "" && p.Project != p.Owner {
		return p.Project + "/" + p.Repo
	}
	return p.Owner + "/" + p.Repo
}

// Parse extracts owner/project/repo from a repository URL. A scan can never
// attribute records to a repository it cannot identify, so every failure here
// is fatal to the caller.
func Parse(repoURL string, toolType models.ToolType, username, repoName string) (*RepoPath, error) {
	raw := strings.TrimSpace(repoURL)
	if raw == "" {
		return nil, fmt.Errorf("repository URL is empty")
	}

	segments, host, err := pathSegments(raw)
	if err != nil {
		return nil, err
	}
	if toolType == models.ToolTypeAzure {
		return parseAzure(segments, host, repoName)
	}
	if len(segments) < 2 {
		return nil, fmt.Errorf("cannot parse owner/repo from URL %q", repoURL)
	}

	repo := strings.TrimSuffix(segments[len(segments)-1], ".git")
	owner := segments[0]
	// GitLab subgroups: keep the full namespace as Project.
	project := strings.Join(segments[:len(segments)-1], "/")
	if repo == "" || owner == "" {
		return nil, fmt.Errorf("cannot parse owner/repo from URL %q", repoURL)
	}
	return &RepoPath{Owner: owner, Project: project, Repo: repo}, nil
}

// pathSegments normalises https and scp-style ssh URLs into path segments.
func pathSegments(raw string) ([]string, string, error) {
	// scp-style: git@host:owner/repo.git
	if strings.HasPrefix(raw, "git@") {
		rest := strings.TrimPrefix(raw, "git@")
		host, path, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, "", fmt.Errorf("cannot parse ssh URL %q", raw)
		}
		return splitPath(path), host, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("cannot parse URL %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("URL %q has no host", raw)
	}
	return splitPath(u.Path), u.Hostname(), nil
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseAzure handles the Azure DevOps URL shapes:
//
//	https://dev.azure.com/org/project/_git/repo
//	https://org.visualstudio.com/project/_git/repo
//	git@ssh.dev.azure.com:v3/org/project/repo
func parseAzure(segments []string, host, repoName string) (*RepoPath, error) {
	if len(segments) > 0 && segments[0] == "v3" {
		segments = segments[1:]
		if len(segments) == 3 {
			return &RepoPath{
				Owner:   segments[0],
				Project: segments[0] + "/" + segments[1],
				Repo:    segments[2],
			}, nil
		}
		return nil, fmt.Errorf("cannot parse Azure ssh path %q", strings.Join(segments, "/"))
	}

	for i, s := range segments {
		if s != "_git" || i == len(segments)-1 {
			continue
		}
		repo := strings.TrimSuffix(segments[i+1], ".git")
		switch {
		case i >= 2: // dev.azure.com/org/project/_git/repo
			return &RepoPath{
				Owner:   segments[i-2],
				Project: segments[i-2] + "/" + segments[i-1],
				Repo:    repo,
			}, nil
		case i == 1 && strings.HasSuffix(host, "visualstudio.com"):
			org := strings.TrimSuffix(host, ".visualstudio.com")
			return &RepoPath{
				Owner:   org,
				Project: org + "/" + segments[0],
				Repo:    repo,
			}, nil
		}
	}

	// Some connections configure the org URL only and carry the repository
	// name separately.
	if repoName != "" && len(segments) >= 2 {
		return &RepoPath{
			Owner:   segments[0],
			Project: segments[0] + "/" + segments[1],
			Repo:    repoName,
		}, nil
	}
	return nil, fmt.Errorf("cannot parse Azure repository URL (host %q)", host)
}
