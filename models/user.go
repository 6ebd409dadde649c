package models

// User is the canonical contributor identity resolved from the raw author
// identities observed across the commits and merge requests of one scan.
// Records reference a User by ID rather than carrying a copy.
type User struct {
	ID           int64  `json:"id"             db:"id"`
	ToolConfigID string `json:"tool_config_id" db:"tool_config_id"`
	DisplayName  string `json:"display_name"   db:"display_name"`
	Email        string `json:"email"          db:"email"`
	Username     string `json:"username"       db:"username"`
}
