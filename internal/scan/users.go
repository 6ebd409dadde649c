package scan

import (
	"strings"

	"github.com/kpihub/scmscan/models"
)

// UserResolver folds the raw author identities observed across one scan's
// commits and merge requests into canonical User records. Identities are
// keyed by lower-cased email when present, otherwise by lower-cased name.
type UserResolver struct{}

// Resolve returns the canonical users and an index from identity key to
// user. Records keep only a reference to the resolved user.
func (UserResolver) Resolve(commits []models.Commit, mrs []models.MergeRequest, req models.ScanRequest) (map[string]*models.User, []*models.User) {
	index := make(map[string]*models.User)
	var users []*models.User

	add := func(name, email, username string) {
		key := identityKey(name, email)
		if key == "" {
			return
		}
		if u, ok := index[key]; ok {
			// Fill in fields a later sighting knows that an earlier one didn't.
			if u.DisplayName == "" {
				u.DisplayName = name
			}
			if u.Email == "" {
				u.Email = email
			}
			if u.Username == "" {
				u.Username = username
			}
			return
		}
		u := &models.User{
			ToolConfigID: req.ToolConfigID,
			DisplayName:  name,
			Email:        email,
			Username:     username,
		}
		index[key] = u
		users = append(users, u)
	}

	for _, c := range commits {
		add(c.AuthorName, c.AuthorEmail, "")
	}
	for _, mr := range mrs {
		add(mr.AuthorName, mr.AuthorEmail, "")
	}
	return index, users
}

// LinkCommits points each commit at its resolved user and stamps the
// connection back-references.
func (UserResolver) LinkCommits(commits []models.Commit, index map[string]*models.User, req models.ScanRequest) {
	for i := range commits {
		commits[i].ToolConfigID = req.ToolConfigID
		commits[i].ProcessorItemID = req.ConnectionID
		if u, ok := index[identityKey(commits[i].AuthorName, commits[i].AuthorEmail)]; ok {
			commits[i].UserID = u.ID
		}
	}
}

// LinkMergeRequests is the merge-request counterpart of LinkCommits.
func (UserResolver) LinkMergeRequests(mrs []models.MergeRequest, index map[string]*models.User, req models.ScanRequest) {
	for i := range mrs {
		mrs[i].ToolConfigID = req.ToolConfigID
		mrs[i].ProcessorItemID = req.ConnectionID
		if u, ok := index[identityKey(mrs[i].AuthorName, mrs[i].AuthorEmail)]; ok {
			mrs[i].UserID = u.ID
		}
	}
}

func identityKey(name, email string) string {
	if email != "" {
		return strings.ToLower(email)
	}
	return strings.ToLower(strings.TrimSpace(name))
}
