package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kpihub/scmscan/internal/database"
	"github.com/kpihub/scmscan/models"
)

// mrColumns matches the field order of models.MergeRequest.
const mrColumns = `id, tool_config_id, processor_item_id, external_id, title, author_name,
	author_email, user_id, state, created_on, updated_on, closed_on,
	source_branch, target_branch, additions, deletions, files_changed`

// ScmStore is the persistence service for scan output. All writes are
// idempotent upserts keyed by (tool_config_id, revision_id) for commits and
// (tool_config_id, external_id) for merge requests.
type ScmStore struct {
	db database.DB
}

// New creates an ScmStore on top of the generic DB.
func New(db database.DB) *ScmStore {
	return &ScmStore{db: db}
}

// SaveCommits bulk-upserts commits.
func (s *ScmStore) SaveCommits(ctx context.Context, commits []models.Commit) error {
	for i := range commits {
		if err := s.db.Upsert(ctx, "scm_commits", &commits[i],
			[]string{"tool_config_id", "revision_id"}); err != nil {
			return fmt.Errorf("saving commit %s: %w", commits[i].RevisionID, err)
		}
	}
	return nil
}

// SaveMergeRequests bulk-upserts merge requests.
func (s *ScmStore) SaveMergeRequests(ctx context.Context, mrs []models.MergeRequest) error {
	for i := range mrs {
		if err := s.db.Upsert(ctx, "scm_merge_requests", &mrs[i],
			[]string{"tool_config_id", "external_id"}); err != nil {
			return fmt.Errorf("saving merge request %s: %w", mrs[i].ExternalID, err)
		}
	}
	return nil
}

// SaveRepository upserts repository metadata.
func (s *ScmStore) SaveRepository(ctx context.Context, repo *models.Repository) error {
	if repo == nil {
		return nil
	}
	if err := s.db.Upsert(ctx, "scm_repositories", repo,
		[]string{"tool_config_id", "owner", "name"}); err != nil {
		return fmt.Errorf("saving repository %s/%s: %w", repo.Owner, repo.Name, err)
	}
	return nil
}

// EnsureUser upserts a user and fills in its database ID.
func (s *ScmStore) EnsureUser(ctx context.Context, u *models.User) error {
	if err := s.db.Upsert(ctx, "scm_users", u,
		[]string{"tool_config_id", "email", "username"}); err != nil {
		return fmt.Errorf("saving user %q: %w", u.DisplayName, err)
	}
	return s.db.Get(ctx, u,
		`SELECT id, tool_config_id, display_name, email, username
		   FROM scm_users WHERE tool_config_id = ? AND email = ? AND username = ?`,
		u.ToolConfigID, u.Email, u.Username)
}

// SaveUsers upserts all users, assigning their IDs in place.
func (s *ScmStore) SaveUsers(ctx context.Context, users []*models.User) error {
	for _, u := range users {
		if err := s.EnsureUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// FindOpenMergeRequests returns one page of merge requests currently recorded
// as OPEN for the given connection, oldest-updated first. Page is zero-based.
func (s *ScmStore) FindOpenMergeRequests(ctx context.Context, toolConfigID string, page, perPage int) ([]models.MergeRequest, error) {
	if perPage <= 0 {
		perPage = 50
	}
	var out []models.MergeRequest
	err := s.db.Select(ctx, &out,
		`SELECT `+mrColumns+`
		   FROM scm_merge_requests
		  WHERE tool_config_id = ? AND state = ?
		  ORDER BY updated_on ASC
		  LIMIT ? OFFSET ?`,
		toolConfigID, string(models.MRStateOpen), perPage, page*perPage)
	if err != nil {
		return nil, fmt.Errorf("loading open merge requests: %w", err)
	}
	return out, nil
}

// LastScanFrom returns the start time (epoch millis) of the most recent
// successful scan for the connection, or 0 when it has never been scanned.
func (s *ScmStore) LastScanFrom(ctx context.Context, toolConfigID string) (int64, error) {
	var last models.ScanResult
	err := s.db.Get(ctx, &last,
		`SELECT id, success, repository_url, repository_name, tool_config_id,
		        commits_found, merge_requests_found, users_found,
		        start_time, end_time, duration_ms, error_msg
		   FROM scan_results
		  WHERE tool_config_id = ? AND success = 1
		  ORDER BY start_time DESC LIMIT 1`,
		toolConfigID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loading last scan time: %w", err)
	}
	return last.StartTime.UnixMilli(), nil
}

// RecordScanResult persists a finalized scan result.
func (s *ScmStore) RecordScanResult(ctx context.Context, r *models.ScanResult) error {
	id, err := s.db.Insert(ctx, "scan_results", r)
	if err != nil {
		return fmt.Errorf("recording scan result: %w", err)
	}
	r.ID = id
	return nil
}
