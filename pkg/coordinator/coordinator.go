// Package coordinator implements the Compaction Coordinator (spec §4.3): a
// singleton, durable mutex that serializes compactions, with stale-lock
// expiry recovered exactly once per instance load.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/lakeside-io/lakeside/pkg/lakeerrors"
	"github.com/lakeside-io/lakeside/pkg/log"
	"github.com/lakeside-io/lakeside/pkg/metrics"
	"github.com/lakeside-io/lakeside/pkg/objectstore"
	"github.com/lakeside-io/lakeside/pkg/types"
)

// DefaultStaleAfter is the reference STALE_MS value from spec §4.3.
const DefaultStaleAfter = 10 * time.Minute

// DefaultName is the fixed key identifying the single logical instance.
const DefaultName = "global-compaction-lock"

const keyPrefix = "_lock/"

// AcquireResult is returned by TryAcquire.
type AcquireResult struct {
	Acquired  bool
	Message   string
	BatchSize int
	AgeMS     int64
}

// Coordinator is a singleton, durable actor: every exported method sends a
// request over a channel to one goroutine, so no two operations on the
// same instance ever execute concurrently — matching spec §4.3's
// serialized-by-construction requirement ("a single dedicated task per
// instance driven by a message queue").
type Coordinator struct {
	store      objectstore.Store
	clock      clockwork.Clock
	staleAfter time.Duration
	name       string
	logger     zerolog.Logger

	reqCh chan request
	done  chan struct{}
}

type request struct {
	ctx   context.Context
	kind  string
	batch []string
	reply chan response
}

type response struct {
	state    types.CoordinatorState
	acquired bool
	message  string
	err      error
}

// New starts a coordinator actor over store, using clock for startedAt and
// stale-lock arithmetic. staleAfter <= 0 uses DefaultStaleAfter; name ==
// "" uses DefaultName. The actor loads its durable state (and recovers a
// stale lock, if any) before serving its first request.
func New(store objectstore.Store, clock clockwork.Clock, staleAfter time.Duration, name string) *Coordinator {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if name == "" {
		name = DefaultName
	}
	c := &Coordinator{
		store:      store,
		clock:      clock,
		staleAfter: staleAfter,
		name:       name,
		logger:     log.WithComponent("coordinator"),
		reqCh:      make(chan request),
		done:       make(chan struct{}),
	}
	go c.run()
	return c
}

// Close stops the coordinator's actor goroutine. It does not release the
// lock — a held lock survives until released, force-released, or expires.
func (c *Coordinator) Close() {
	close(c.reqCh)
	<-c.done
}

func (c *Coordinator) key() string {
	return fmt.Sprintf("%s%s.json", keyPrefix, c.name)
}

func (c *Coordinator) run() {
	defer close(c.done)

	state := c.loadInitial()

	for req := range c.reqCh {
		switch req.kind {
		case "tryAcquire":
			if state.Busy {
				age := c.clock.Since(state.StartedAt)
				metrics.CoordinatorBusyRejections.Inc()
				req.reply <- response{
					acquired: false,
					message: fmt.Sprintf("compaction already in progress (batch=%d, age=%s)",
						len(state.Batch), age.Round(time.Second)),
					state: state,
				}
				continue
			}
			state = types.CoordinatorState{Busy: true, Batch: req.batch, StartedAt: c.clock.Now()}
			if err := c.persist(req.ctx, state); err != nil {
				req.reply <- response{err: err}
				continue
			}
			req.reply <- response{acquired: true, state: state}

		case "release", "forceRelease":
			if req.kind == "forceRelease" && state.Busy {
				c.logger.Warn().Int("batch", len(state.Batch)).Msg("force-releasing compaction lock")
			}
			state = types.CoordinatorState{}
			if err := c.persist(req.ctx, state); err != nil {
				req.reply <- response{err: err}
				continue
			}
			req.reply <- response{state: state}

		case "status":
			req.reply <- response{state: state}
		}
	}
}

// loadInitial reads the durable CoordinatorState on instance load and, if
// it is HELD past staleAfter, recovers it to IDLE — the only automatic
// transition out of HELD, happening exactly once per instance load (spec
// §4.3).
func (c *Coordinator) loadInitial() types.CoordinatorState {
	ctx := context.Background()
	obj, err := c.store.Get(ctx, c.key())
	if err != nil {
		if !errors.Is(err, objectstore.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("failed to load coordinator state, assuming idle")
		}
		return types.CoordinatorState{}
	}

	var state types.CoordinatorState
	if err := json.Unmarshal(obj.Content, &state); err != nil {
		c.logger.Warn().Err(err).Msg("failed to parse coordinator state, assuming idle")
		return types.CoordinatorState{}
	}

	if state.Busy && c.clock.Since(state.StartedAt) > c.staleAfter {
		c.logger.Warn().
			Time("started_at", state.StartedAt).
			Dur("age", c.clock.Since(state.StartedAt)).
			Msg("recovering stale compaction lock")
		metrics.CoordinatorStaleRecoveries.Inc()
		recovered := types.CoordinatorState{}
		if err := c.persist(ctx, recovered); err != nil {
			c.logger.Warn().Err(err).Msg("failed to persist stale-lock recovery")
		}
		return recovered
	}

	return state
}

func (c *Coordinator) persist(ctx context.Context, state types.CoordinatorState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("coordinator: marshal state: %w", err)
	}
	if err := c.store.Put(ctx, c.key(), data, objectstore.PutOptions{}); err != nil {
		return fmt.Errorf("coordinator: persist state: %w", err)
	}
	return nil
}

func (c *Coordinator) send(ctx context.Context, kind string, batch []string) (response, error) {
	reply := make(chan response, 1)
	select {
	case c.reqCh <- request{ctx: ctx, kind: kind, batch: batch, reply: reply}:
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, r.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// TryAcquire attempts to move IDLE -> HELD. If already HELD, it returns
// acquired=false with diagnostics (batch size, age) and lakeerrors.ErrBusy.
func (c *Coordinator) TryAcquire(ctx context.Context, batch []string) (AcquireResult, error) {
	r, err := c.send(ctx, "tryAcquire", batch)
	if err != nil {
		return AcquireResult{}, err
	}
	if !r.acquired {
		return AcquireResult{
			Acquired:  false,
			Message:   r.message,
			BatchSize: len(r.state.Batch),
			AgeMS:     c.clock.Since(r.state.StartedAt).Milliseconds(),
		}, lakeerrors.ErrBusy
	}
	return AcquireResult{Acquired: true, BatchSize: len(r.state.Batch)}, nil
}

// Release moves HELD -> IDLE. Idempotent: releasing from IDLE is a no-op.
func (c *Coordinator) Release(ctx context.Context) error {
	_, err := c.send(ctx, "release", nil)
	return err
}

// ForceRelease is an administrative override of Release, used when an
// operator needs to clear a lock before STALE_MS has elapsed.
func (c *Coordinator) ForceRelease(ctx context.Context) error {
	_, err := c.send(ctx, "forceRelease", nil)
	return err
}

// Status returns a snapshot of the coordinator state for observability.
func (c *Coordinator) Status(ctx context.Context) (types.CoordinatorState, error) {
	r, err := c.send(ctx, "status", nil)
	return r.state, err
}
