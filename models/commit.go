package models

import "time"

// Commit is one revision fetched from a platform.
// A commit is uniquely identified by (ToolConfigID, RevisionID).
type Commit struct {
	ID              int64     `json:"id"                db:"id"`
	ToolConfigID    string    `json:"tool_config_id"    db:"tool_config_id"`
	ProcessorItemID string    `json:"processor_item_id" db:"processor_item_id"`
	RevisionID      string    `json:"revision_id"       db:"revision_id"`
	AuthorName      string    `json:"author_name"       db:"author_name"`
	AuthorEmail     string    `json:"author_email"      db:"author_email"`
	UserID          int64     `json:"user_id"           db:"user_id"` // resolved canonical user
	Message         string    `json:"message"           db:"message"`
	Branch          string    `json:"branch"            db:"branch"`
	CommittedAt     time.Time `json:"committed_at"      db:"committed_at"`
	Additions       int       `json:"additions"         db:"additions"`
	Deletions       int       `json:"deletions"         db:"deletions"`
	FilesChanged    int       `json:"files_changed"     db:"files_changed"`
}

// Repository is platform-side repository metadata captured during a scan.
type Repository struct {
	ID            int64     `json:"id"             db:"id"`
	ToolConfigID  string    `json:"tool_config_id" db:"tool_config_id"`
	Owner         string    `json:"owner"          db:"owner"`
	Name          string    `json:"name"           db:"name"`
	DefaultBranch string    `json:"default_branch" db:"default_branch"`
	HTMLURL       string    `json:"html_url"       db:"html_url"`
	UpdatedOn     time.Time `json:"updated_on"     db:"updated_on"`
}
