package models

import (
	"fmt"
	"strings"
)

// ToolType identifies a supported source-control hosting platform.
type ToolType string

const (
	ToolTypeGitHub    ToolType = "github"
	ToolTypeGitLab    ToolType = "gitlab"
	ToolTypeBitbucket ToolType = "bitbucket"
	ToolTypeAzure     ToolType = "azurerepository"
)

// AllToolTypes lists every platform the scanner supports.
var AllToolTypes = []ToolType{ToolTypeGitHub, ToolTypeGitLab, ToolTypeBitbucket, ToolTypeAzure}

// ParseToolType normalises a free-form tool-type string (case-insensitive)
// into a ToolType. Unknown values return an error rather than a guess.
func ParseToolType(s string) (ToolType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "github":
		return ToolTypeGitHub, nil
	case "gitlab":
		return ToolTypeGitLab, nil
	case "bitbucket":
		return ToolTypeBitbucket, nil
	case "azurerepository", "azure", "azuredevops":
		return ToolTypeAzure, nil
	default:
		return "", fmt.Errorf("unsupported tool type %q (supported: github, gitlab, bitbucket, azurerepository)", s)
	}
}

// DetectToolType infers the hosting platform from a repository URL.
func DetectToolType(repoURL string) (ToolType, error) {
	lower := strings.ToLower(repoURL)
	switch {
	case strings.Contains(lower, "github.com") || strings.Contains(lower, "github."):
		return ToolTypeGitHub, nil
	case strings.Contains(lower, "gitlab.com") || strings.Contains(lower, "gitlab"):
		return ToolTypeGitLab, nil
	case strings.Contains(lower, "dev.azure.com") || strings.Contains(lower, "visualstudio.com"):
		return ToolTypeAzure, nil
	case strings.Contains(lower, "bitbucket.org") || strings.Contains(lower, "bitbucket"):
		return ToolTypeBitbucket, nil
	default:
		return "", fmt.Errorf("cannot detect platform from URL %q", repoURL)
	}
}

func (t ToolType) String() string { return string(t) }
