package models

import (
	"strings"
	"time"
)

// MergeRequestState is the lifecycle state of a merge/pull request.
type MergeRequestState string

const (
	MRStateOpen     MergeRequestState = "OPEN"
	MRStateMerged   MergeRequestState = "MERGED"
	MRStateClosed   MergeRequestState = "CLOSED"
	MRStateDeclined MergeRequestState = "DECLINED"
)

// NormalizeMRState maps platform-specific state strings onto the canonical
// set. GitHub reports merged PRs as "closed" with a merged flag, GitLab uses
// "opened"/"merged", Bitbucket uses "OPEN"/"MERGED"/"DECLINED", Azure uses
// "active"/"completed"/"abandoned".
func NormalizeMRState(raw string, merged bool) MergeRequestState {
	switch strings.ToLower(raw) {
	case "open", "opened", "active":
		return MRStateOpen
	case "merged", "completed":
		return MRStateMerged
	case "declined", "abandoned":
		return MRStateDeclined
	case "closed":
		if merged {
			return MRStateMerged
		}
		return MRStateClosed
	default:
		return MergeRequestState(strings.ToUpper(raw))
	}
}

// MergeRequest is one merge/pull request fetched from a platform.
// Uniquely identified by (ToolConfigID, ExternalID); a single scan never
// produces two records with the same ExternalID.
type MergeRequest struct {
	ID              int64             `json:"id"                db:"id"`
	ToolConfigID    string            `json:"tool_config_id"    db:"tool_config_id"`
	ProcessorItemID string            `json:"processor_item_id" db:"processor_item_id"`
	ExternalID      string            `json:"external_id"       db:"external_id"` // platform PR/MR number
	Title           string            `json:"title"             db:"title"`
	AuthorName      string            `json:"author_name"       db:"author_name"`
	AuthorEmail     string            `json:"author_email"      db:"author_email"`
	UserID          int64             `json:"user_id"           db:"user_id"`
	State           MergeRequestState `json:"state"             db:"state"`
	CreatedOn       time.Time         `json:"created_on"        db:"created_on"`
	UpdatedOn       time.Time         `json:"updated_on"        db:"updated_on"`
	ClosedOn        *time.Time        `json:"closed_on"         db:"closed_on"`
	SourceBranch    string            `json:"source_branch"     db:"source_branch"`
	TargetBranch    string            `json:"target_branch"     db:"target_branch"`
	Additions       int               `json:"additions"         db:"additions"`
	Deletions       int               `json:"deletions"         db:"deletions"`
	FilesChanged    int               `json:"files_changed"     db:"files_changed"`
}
