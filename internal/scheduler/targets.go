package scheduler

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/kpihub/scmscan/models"
)

// Target is one repository entry in the daemon's repos file.
type Target struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
	// ToolType may be omitted; it is then detected from the URL.
	ToolType     string `yaml:"tool_type"`
	ToolConfigID string `yaml:"tool_config_id"`
	Branch       string `yaml:"branch"`
	Username     string `yaml:"username"`
	Token        string `yaml:"token"`
	ConnectionID string `yaml:"connection_id"`
}

type targetsFile struct {
	Repositories []Target `yaml:"repositories"`
}

// LoadTargets reads and validates the YAML repos file.
func LoadTargets(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading repos file: %w", err)
	}

	var f targetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing repos file %s: %w", path, err)
	}

	for i := range f.Repositories {
		t := &f.Repositories[i]
		if t.URL == "" {
			return nil, fmt.Errorf("repos file entry %d has no url", i)
		}
		if _, err := t.Resolve(); err != nil {
			return nil, fmt.Errorf("repos file entry %d (%s): %w", i, t.URL, err)
		}
	}
	return f.Repositories, nil
}

// Resolve converts a target into a ScanRequest, detecting the platform from
// the URL when the entry does not name one. The incremental cursor is filled
// in by the scheduler per sweep.
func (t Target) Resolve() (models.ScanRequest, error) {
	var (
		toolType models.ToolType
		err      error
	)
	if t.ToolType != "" {
		toolType, err = models.ParseToolType(t.ToolType)
	} else {
		toolType, err = models.DetectToolType(t.URL)
	}
	if err != nil {
		return models.ScanRequest{}, err
	}

	toolConfigID := t.ToolConfigID
	if toolConfigID == "" {
		toolConfigID = t.URL
	}
	return models.ScanRequest{
		RepositoryURL:  t.URL,
		RepositoryName: t.Name,
		ToolType:       toolType,
		ToolConfigID:   toolConfigID,
		Username:       t.Username,
		Token:          t.Token,
		BranchName:     t.Branch,
		ConnectionID:   t.ConnectionID,
	}, nil
}
