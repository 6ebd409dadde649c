package cmd

import (
	"context"
	"fmt"

	"github.com/kpihub/scmscan/internal/config"
	"github.com/kpihub/scmscan/internal/database"
	"github.com/kpihub/scmscan/internal/gitutil"
	"github.com/kpihub/scmscan/internal/platform"
	"github.com/kpihub/scmscan/internal/ratelimit"
	"github.com/kpihub/scmscan/internal/scan"
	"github.com/kpihub/scmscan/internal/store"
)

// app bundles the wired engine shared by the scan and daemon commands.
type app struct {
	cfg      *config.Config
	db       database.DB
	store    *store.ScmStore
	executor *scan.Executor
}

// newApp loads configuration, opens storage, and wires the scan engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	st := store.New(db)
	rl := ratelimit.NewService(cfg.Scanner.RateLimit)
	registry := platform.NewRegistry(rl, cfg.Platforms)

	commits := scan.NewCommitFetcher(registry, cfg.Scanner, cfg.Platforms)
	mrs := scan.NewMergeRequestFetcher(registry, st, cfg.Scanner, cfg.Platforms)
	repos := scan.NewRepositoryFetcher(registry, cfg.Scanner, cfg.Platforms)

	var verifier scan.BranchVerifier
	if cfg.Scanner.VerifyBranch {
		verifier = gitutil.RemoteVerifier{}
	}

	executor := scan.NewExecutor(commits, mrs, repos, st, verifier, cfg.Scanner)
	return &app{cfg: cfg, db: db, store: st, executor: executor}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
