package gitutil

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// RemoteVerifier checks branch existence with a bare ls-remote, without
// cloning and without spending platform API quota.
type RemoteVerifier struct{}

// VerifyBranch returns an error when the branch does not exist on the remote
// (or the remote is unreachable with the given credentials).
func (RemoteVerifier) VerifyBranch(ctx context.Context, repoURL, branch, username, token string) error {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{repoURL},
	})

	opts := &git.ListOptions{}
	if token != "" {
		if username == "" {
			// Token-auth platforms accept any non-empty username.
			username = "git"
		}
		opts.Auth = &githttp.BasicAuth{Username: username, Password: token}
	}

	refs, err := remote.ListContext(ctx, opts)
	if err != nil {
		return fmt.Errorf("listing remote refs for %s: %w", repoURL, err)
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return nil
		}
	}
	return fmt.Errorf("branch %q not found on remote %s", branch, repoURL)
}
