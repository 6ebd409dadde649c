package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/kpihub/scmscan/internal/config"
	"github.com/kpihub/scmscan/internal/metrics"
	"github.com/kpihub/scmscan/internal/scan"
	"github.com/kpihub/scmscan/internal/store"
	"github.com/kpihub/scmscan/models"
)

// Scheduler runs periodic sweeps over the configured repositories. Sweeps
// run each repository scan on a bounded worker pool, and scans of the same
// connection are serialized: concurrent scans of one repository would race
// on the open-merge-request reconciliation read.
type Scheduler struct {
	executor *scan.Executor
	store    *store.ScmStore
	cfg      config.DaemonConfig
	cron     *cron.Cron

	mu       sync.Mutex
	inFlight map[string]struct{} // tool config IDs currently scanning
}

// New creates a Scheduler.
func New(executor *scan.Executor, st *store.ScmStore, cfg config.DaemonConfig) *Scheduler {
	return &Scheduler{
		executor: executor,
		store:    st,
		cfg:      cfg,
		cron:     cron.New(),
		inFlight: make(map[string]struct{}),
	}
}

// Start registers the sweep schedule and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Cron, func() {
		if err := s.RunSweep(ctx); err != nil {
			slog.Warn("scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.cfg.Cron, err)
	}
	s.cron.Start()
	slog.Info("scan scheduler started", "cron", s.cfg.Cron, "workers", s.workers())
	return nil
}

// Stop halts the cron runner. In-flight scans finish on their own.
func (s *Scheduler) Stop() { s.cron.Stop() }

// RunSweep scans every configured repository once, bounded by the worker
// limit. Individual scan failures are recorded and do not fail the sweep.
func (s *Scheduler) RunSweep(ctx context.Context) error {
	targets, err := LoadTargets(s.cfg.ReposFile)
	if err != nil {
		return err
	}
	slog.Info("sweep started", "repositories", len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for _, t := range targets {
		target := t
		g.Go(func() error {
			s.scanTarget(ctx, target)
			return nil
		})
	}
	return g.Wait()
}

// scanTarget runs one repository scan end to end, including reading the
// incremental cursor and recording the result row.
func (s *Scheduler) scanTarget(ctx context.Context, target Target) {
	req, err := target.Resolve()
	if err != nil {
		slog.Warn("skipping unresolvable target", "url", target.URL, "error", err)
		return
	}

	if !s.acquire(req.ToolConfigID) {
		slog.Info("scan already in flight, skipping", "repo", req.RepositoryName)
		return
	}
	defer s.release(req.ToolConfigID)

	lastScanFrom, err := s.store.LastScanFrom(ctx, req.ToolConfigID)
	if err != nil {
		slog.Warn("cannot read last scan time, using default lookback",
			"repo", req.RepositoryName, "error", err)
	}
	req.LastScanFrom = lastScanFrom

	result, err := s.executor.Execute(ctx, models.ScanCommand{Request: req})
	if err != nil {
		metrics.ScansTotal.WithLabelValues(string(req.ToolType), "failure").Inc()
		slog.Error("repository scan failed", "repo", req.RepositoryName, "error", err)

		failed := models.NewScanResult(req)
		failed.Finalize(false, err.Error())
		if rerr := s.store.RecordScanResult(ctx, failed); rerr != nil {
			slog.Warn("cannot record failed scan", "repo", req.RepositoryName, "error", rerr)
		}
		return
	}

	metrics.ScansTotal.WithLabelValues(string(req.ToolType), "success").Inc()
	metrics.CommitsIngested.Add(float64(result.CommitsFound))
	metrics.MergeRequestsIngested.Add(float64(result.MergeRequestsFound))
	metrics.ScanDuration.WithLabelValues(string(req.ToolType)).
		Observe(float64(result.DurationMs) / 1000)

	if err := s.store.RecordScanResult(ctx, result); err != nil {
		slog.Warn("cannot record scan result", "repo", req.RepositoryName, "error", err)
	}
}

func (s *Scheduler) acquire(toolConfigID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[toolConfigID]; busy {
		return false
	}
	s.inFlight[toolConfigID] = struct{}{}
	return true
}

func (s *Scheduler) release(toolConfigID string) {
	s.mu.Lock()
	delete(s.inFlight, toolConfigID)
	s.mu.Unlock()
}

func (s *Scheduler) workers() int {
	if s.cfg.Workers > 0 {
		return s.cfg.Workers
	}
	return 3
}
