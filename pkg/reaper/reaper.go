// Package reaper implements the orphan sweep: jobs left "running" by a
// worker node that has since dropped out of the cluster (crash, OOM
// kill, lost lease) are transitioned to failed so they stop blocking
// retries and counting against in-flight limits.
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"skeenode/pkg/coordination"
	"skeenode/pkg/logger"
	"skeenode/pkg/metrics"
	"skeenode/pkg/store"
)

// Config tunes the reaper's sweep cadence.
type Config struct {
	// Interval is how often the reaper compares running jobs against
	// the cluster's active node list.
	Interval time.Duration
}

// DefaultConfig mirrors the scheduler sweep's own cadence.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second}
}

// Run sweeps for orphaned jobs on a ticker until ctx is cancelled. Each
// sweep only runs while election reports this instance as leader, so a
// cluster never double-reaps the same orphan.
func Run(ctx context.Context, cfg Config, jobs store.JobStore, coord coordination.Coordinator, election coordination.Election) {
	if cfg.Interval <= 0 {
		cfg = DefaultConfig()
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if election != nil && !election.IsLeader() {
				continue
			}
			sweep(ctx, jobs, coord)
		}
	}
}

func sweep(ctx context.Context, jobs store.JobStore, coord coordination.Coordinator) {
	nodes, err := coord.GetActiveNodes(ctx)
	if err != nil {
		logger.Get().Error("reaper: failed to list active nodes", zap.Error(err))
		return
	}

	activeIDs := make([]string, len(nodes))
	for i, n := range nodes {
		activeIDs[i] = n.ID
	}

	reaped, err := jobs.MarkOrphansAsFailed(ctx, activeIDs)
	if err != nil {
		logger.Get().Error("reaper: failed to mark orphans as failed", zap.Error(err))
		return
	}

	if reaped > 0 {
		metrics.OrphansReaped.Add(float64(reaped))
		logger.Get().Info("reaper: reaped orphaned jobs", zap.Int64("count", reaped))
	}
}
