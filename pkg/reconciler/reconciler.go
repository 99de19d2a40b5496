// Package reconciler runs the orphan-detection sweep (spec §4.4
// "Reconciliation") on a fixed interval, as a background process
// alongside the compaction service.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakeside-io/lakeside/pkg/compactor"
	"github.com/lakeside-io/lakeside/pkg/log"
)

// DefaultInterval is used when New is given interval <= 0.
const DefaultInterval = 5 * time.Minute

// Reconciler periodically calls Compactor.Reconcile and logs the orphan
// count, giving operators visibility into reclaim failures between
// on-demand GET /reconcile calls.
type Reconciler struct {
	compactor *compactor.Compactor
	interval  time.Duration
	logger    zerolog.Logger
	mu        sync.Mutex
	stopCh    chan struct{}
}

// New creates a reconciler over c. interval <= 0 uses DefaultInterval.
func New(c *compactor.Compactor, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		compactor: c,
		interval:  interval,
		logger:    log.WithComponent("reconciler"),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the reconciliation loop in a new goroutine.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciliation loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			r.runCycle()
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

func (r *Reconciler) runCycle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	report, err := r.compactor.Reconcile(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("reconcile cycle failed")
		return
	}

	if report.OrphanCount == 0 {
		r.logger.Debug().Msg("reconcile cycle found no orphans")
		return
	}

	r.logger.Warn().
		Int("orphan_count", report.OrphanCount).
		Strs("orphans", report.OrphanedJSONFiles).
		Msg("reconcile cycle found orphaned staging objects")
}
