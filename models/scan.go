package models

import "time"

// ScanRequest is the immutable input to one repository scan.
//
// The incremental cursor has three forms, in order of precedence:
// LastScanFrom (epoch millis of the previous successful scan), an explicit
// Since/Until pair, or the configured default lookback applied by the
// fetchers when neither is set.
type ScanRequest struct {
	RepositoryURL  string     `json:"repository_url"`
	RepositoryName string     `json:"repository_name"`
	ToolType       ToolType   `json:"tool_type"`
	ToolConfigID   string     `json:"tool_config_id"` // correlates all records from this connection
	Username       string     `json:"username"`
	Token          string     `json:"token"`
	BranchName     string     `json:"branch_name"`
	ConnectionID   string     `json:"connection_id"`
	LastScanFrom   int64      `json:"last_scan_from"` // epoch millis; 0 means unset
	Since          *time.Time `json:"since,omitempty"`
	Until          *time.Time `json:"until,omitempty"`
}

// ScanCommand wraps a ScanRequest for the executor.
type ScanCommand struct {
	Request ScanRequest
}

// ScanResult is the outcome of one repository scan. It is created when the
// scan starts and finalized exactly once when the scan ends.
type ScanResult struct {
	ID                 int64     `json:"id"                   db:"id"`
	Success            bool      `json:"success"              db:"success"`
	RepositoryURL      string    `json:"repository_url"       db:"repository_url"`
	RepositoryName     string    `json:"repository_name"      db:"repository_name"`
	ToolConfigID       string    `json:"tool_config_id"       db:"tool_config_id"`
	CommitsFound       int       `json:"commits_found"        db:"commits_found"`
	MergeRequestsFound int       `json:"merge_requests_found" db:"merge_requests_found"`
	UsersFound         int       `json:"users_found"          db:"users_found"`
	StartTime          time.Time `json:"start_time"           db:"start_time"`
	EndTime            time.Time `json:"end_time"             db:"end_time"`
	DurationMs         int64     `json:"duration_ms"          db:"duration_ms"`
	ErrorMsg           string    `json:"error_msg,omitempty"  db:"error_msg"`
}

// NewScanResult starts a result for the given request.
func NewScanResult(req ScanRequest) *ScanResult {
	return &ScanResult{
		RepositoryURL:  req.RepositoryURL,
		RepositoryName: req.RepositoryName,
		ToolConfigID:   req.ToolConfigID,
		StartTime:      time.Now().UTC(),
	}
}

// Finalize stamps the end time and success flag. Calling it again is a no-op.
func (r *ScanResult) Finalize(success bool, errMsg string) {
	if !r.EndTime.IsZero() {
		return
	}
	r.Success = success
	r.ErrorMsg = errMsg
	r.EndTime = time.Now().UTC()
	r.DurationMs = r.EndTime.Sub(r.StartTime).Milliseconds()
}
