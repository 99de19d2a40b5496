// Package compactor implements the Compaction Orchestrator (C4, spec
// §4.4): it drives one compaction end to end — schema fetch, snapshot,
// acquire, per-partition encode, commit, publish, reclaim — and exposes
// the pure reconcile/cleanup operations used to detect and repair
// orphaned staging objects left by a failed reclaim.
package compactor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lakeside-io/lakeside/pkg/coordinator"
	"github.com/lakeside-io/lakeside/pkg/encoder"
	"github.com/lakeside-io/lakeside/pkg/lakeerrors"
	"github.com/lakeside-io/lakeside/pkg/log"
	"github.com/lakeside-io/lakeside/pkg/metrics"
	"github.com/lakeside-io/lakeside/pkg/objectstore"
	"github.com/lakeside-io/lakeside/pkg/partition"
	"github.com/lakeside-io/lakeside/pkg/schema"
	"github.com/lakeside-io/lakeside/pkg/txlog"
	"github.com/lakeside-io/lakeside/pkg/types"
)

const stagingPrefix = "data/"
const artifactPrefix = "parquet/"

// Compactor wires the four core components (C1-C4) together over a
// single object store.
type Compactor struct {
	store  objectstore.Store
	schema *schema.Manager
	coord  *coordinator.Coordinator
	log    *txlog.Log
	clock  clockwork.Clock
}

// New wires a Compactor. clock == nil uses the real wall clock.
func New(store objectstore.Store, sm *schema.Manager, coord *coordinator.Coordinator, txl *txlog.Log, clock clockwork.Clock) *Compactor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Compactor{store: store, schema: sm, coord: coord, log: txl, clock: clock}
}

// Result is the HTTP-facing outcome of a successful Run (spec §6 POST /).
type Result struct {
	TransactionVersion int
	Partitions         int
	FilesCompacted     int
	TotalRows          int
	ParquetFiles       []string
	Empty              bool
	PublishDeferred    []string
	ReclaimDeferred    []string
}

// partitionResult is one partition's encoded output, carried from
// encodePartition through commit to publish.
type partitionResult struct {
	add     types.FileAction
	removes []types.FileAction
	data    []byte
	rows    int
}

// Run executes one compaction (spec §4.4 steps 1-7). A nil error with
// Result.Empty true means there was nothing to do. A non-nil error is
// always a pre-commit failure (SchemaUnavailable, Busy,
// PartitionReadFailed, EncodeFailed, or LogContention) — once the
// transaction log has been appended, Run no longer returns failure for
// anything that happens afterward (spec §7 propagation policy).
func (c *Compactor) Run(ctx context.Context) (Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CompactionDuration)

	logger := log.WithComponent("compactor")

	s, err := c.schema.Get(ctx)
	if err != nil {
		metrics.CompactionsTotal.WithLabelValues("failed").Inc()
		return Result{}, err
	}

	listed, err := c.store.List(ctx, stagingPrefix)
	if err != nil {
		metrics.CompactionsTotal.WithLabelValues("failed").Inc()
		return Result{}, fmt.Errorf("compactor: list %s: %w", stagingPrefix, err)
	}
	// Only well-formed staging keys join the snapshot; anything else under
	// data/ is left untouched.
	keys := make([]string, 0, len(listed))
	for _, k := range listed {
		if _, ok := partition.Of(k); ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		metrics.CompactionsTotal.WithLabelValues("empty").Inc()
		return Result{Empty: true}, nil
	}

	if acq, err := c.coord.TryAcquire(ctx, keys); err != nil {
		metrics.CompactionsTotal.WithLabelValues("busy").Inc()
		if acq.Message != "" {
			return Result{}, fmt.Errorf("%w: %s", err, acq.Message)
		}
		return Result{}, err
	}

	result, err := c.runLocked(ctx, logger, keys, s)
	if err != nil {
		if relErr := c.coord.Release(ctx); relErr != nil {
			logger.Warn().Err(relErr).Msg("failed to release lock after aborted compaction")
		}
		metrics.CompactionsTotal.WithLabelValues("failed").Inc()
		return Result{}, err
	}

	metrics.CompactionsTotal.WithLabelValues("committed").Inc()
	metrics.FilesCompactedTotal.Add(float64(result.FilesCompacted))
	metrics.RowsCompactedTotal.Add(float64(result.TotalRows))
	metrics.PartitionsPerCompaction.Observe(float64(result.Partitions))

	return result, nil
}

// runLocked performs steps 4-7. Called with the coordinator already HELD
// for this batch; release is always the caller's responsibility.
func (c *Compactor) runLocked(ctx context.Context, logger zerolog.Logger, keys []string, s types.Schema) (Result, error) {
	groups := partition.Group(keys)
	ts := c.timestamp()

	partResults, err := c.encodePartitions(ctx, groups, s, ts)
	if err != nil {
		return Result{}, err
	}

	var adds, removes []types.FileAction
	totalRows := 0
	parquetFiles := make([]string, 0, len(partResults))
	for _, pr := range partResults {
		adds = append(adds, pr.add)
		removes = append(removes, pr.removes...)
		totalRows += pr.rows
		parquetFiles = append(parquetFiles, pr.add.Path)
	}

	entry := types.TransactionEntry{
		Timestamp: c.clock.Now().UTC(),
		Operation: types.OperationCompact,
		Add:       adds,
		Remove:    removes,
		Metadata: map[string]any{
			"partitionCount": len(partResults),
			"totalRows":      totalRows,
		},
	}

	version, err := c.log.Append(ctx, entry)
	if err != nil {
		return Result{}, err
	}

	// Past this point the lake has advanced: failures are logged as
	// post-commit anomalies (spec §7), never returned as a Run error.
	publishDeferred := c.publish(ctx, logger, partResults)
	reclaimDeferred := c.reclaim(ctx, logger, keys)

	if err := c.coord.Release(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to release lock after committed compaction")
	}

	return Result{
		TransactionVersion: version,
		Partitions:         len(partResults),
		FilesCompacted:     len(keys),
		TotalRows:          totalRows,
		ParquetFiles:       parquetFiles,
		PublishDeferred:    publishDeferred,
		ReclaimDeferred:    reclaimDeferred,
	}, nil
}

// encodePartitions runs encodePartition across partitions concurrently,
// per spec §4.4 step 4 ("For each partition independently and in
// parallel"). Any single partition's failure aborts the whole batch
// before the log is touched.
func (c *Compactor) encodePartitions(ctx context.Context, groups map[string][]string, s types.Schema, ts string) ([]partitionResult, error) {
	partitions := make([]string, 0, len(groups))
	for p := range groups {
		partitions = append(partitions, p)
	}

	results := make([]partitionResult, len(partitions))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range partitions {
		i, p, keys := i, p, groups[p]
		g.Go(func() error {
			pr, err := c.encodePartition(gctx, p, keys, s, ts)
			if err != nil {
				return err
			}
			results[i] = pr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Compactor) encodePartition(ctx context.Context, part string, keys []string, s types.Schema, ts string) (partitionResult, error) {
	var records []types.Record
	for _, key := range keys {
		obj, err := c.store.Get(ctx, key)
		if err != nil || len(obj.Content) == 0 {
			return partitionResult{}, fmt.Errorf("%w: %s", lakeerrors.ErrPartitionReadFailed, key)
		}
		parsed, err := parseBody(key, obj.Content)
		if err != nil {
			return partitionResult{}, fmt.Errorf("%w: %s: %v", lakeerrors.ErrPartitionReadFailed, key, err)
		}
		records = append(records, parsed...)
	}

	data, err := encoder.Encode(records, s)
	if err != nil {
		return partitionResult{}, err
	}

	path := fmt.Sprintf("%s%s/part-%s.%s", artifactPrefix, part, ts, encoder.Ext)
	size := int64(len(data))
	rowCount := int64(len(records))

	removes := make([]types.FileAction, len(keys))
	for i, key := range keys {
		removes[i] = types.FileAction{Path: key}
	}

	return partitionResult{
		add:     types.FileAction{Path: path, Size: &size, RowCount: &rowCount, Partition: part},
		removes: removes,
		data:    data,
		rows:    len(records),
	}, nil
}

func parseBody(key string, content []byte) ([]types.Record, error) {
	if strings.HasSuffix(key, ".ndjson") {
		return parseNDJSON(content)
	}
	return parseSingle(content)
}

func parseSingle(content []byte) ([]types.Record, error) {
	var record types.Record
	if err := json.Unmarshal(content, &record); err != nil {
		return nil, err
	}
	return []types.Record{record}, nil
}

func parseNDJSON(content []byte) ([]types.Record, error) {
	var records []types.Record
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var record types.Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *Compactor) timestamp() string {
	return strings.ReplaceAll(c.clock.Now().UTC().Format("2006-01-02T15:04:05"), ":", "-")
}

// publish writes every partition's artifact bytes in parallel (spec
// §4.4 step 6, "writes are idempotent ... and independent"). A failed
// publish is recorded as a deferred anomaly, never returned as an error.
func (c *Compactor) publish(ctx context.Context, logger zerolog.Logger, results []partitionResult) []string {
	var mu sync.Mutex
	var deferred []string

	g, gctx := errgroup.WithContext(ctx)
	for _, pr := range results {
		pr := pr
		g.Go(func() error {
			err := objectstore.WithRetry(gctx, objectstore.DefaultRetryConfig, func() error {
				return c.store.Put(gctx, pr.add.Path, pr.data, objectstore.PutOptions{})
			})
			if err != nil {
				mu.Lock()
				deferred = append(deferred, pr.add.Path)
				mu.Unlock()
				metrics.PublishDeferredTotal.Inc()
				logger.Warn().Err(err).Str("path", pr.add.Path).Msg("artifact publish deferred")
				return nil
			}
			metrics.ArtifactBytesPublishedTotal.Add(float64(len(pr.data)))
			return nil
		})
	}
	_ = g.Wait()
	return deferred
}

// reclaim deletes every snapshot key in parallel (spec §4.4 step 7).
// Failures become orphans, detectable via Reconcile; never returned as
// an error.
func (c *Compactor) reclaim(ctx context.Context, logger zerolog.Logger, keys []string) []string {
	var mu sync.Mutex
	var deferred []string

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			err := objectstore.WithRetry(gctx, objectstore.DefaultRetryConfig, func() error {
				return c.store.Delete(gctx, key)
			})
			if err != nil {
				mu.Lock()
				deferred = append(deferred, key)
				mu.Unlock()
				metrics.ReclaimDeferredTotal.Inc()
				logger.Warn().Err(err).Str("key", key).Msg("staging reclaim deferred")
			}
			return nil
		})
	}
	_ = g.Wait()
	return deferred
}

// Status reports the coordinator's current state (spec §6 GET /).
func (c *Compactor) Status(ctx context.Context) (types.CoordinatorState, error) {
	return c.coord.Status(ctx)
}

// Transactions returns the full ordered log (spec §6 GET /transactions).
func (c *Compactor) Transactions(ctx context.Context) (txlog.ReadAllResult, error) {
	return c.log.ReadAll(ctx)
}

// ReconcileResult is the orphan report (spec §4.4 "Reconciliation", §6
// GET /reconcile).
type ReconcileResult struct {
	ParquetFiles      []string
	OrphanedJSONFiles []string
	OrphanCount       int
}

// Reconcile computes (replay().removedStaging) ∩ (current staging
// listing): every key a committed log entry claims to have removed but
// which still exists is an orphan from a failed reclaim.
func (c *Compactor) Reconcile(ctx context.Context) (ReconcileResult, error) {
	all, err := c.log.ReadAll(ctx)
	if err != nil {
		return ReconcileResult{}, err
	}
	replay := txlog.Replay(all.Entries)

	currentKeys, err := c.store.List(ctx, stagingPrefix)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("compactor: list %s: %w", stagingPrefix, err)
	}
	current := make(map[string]struct{}, len(currentKeys))
	for _, k := range currentKeys {
		current[k] = struct{}{}
	}

	var orphans []string
	for removed := range replay.RemovedStaging {
		if _, stillPresent := current[removed]; stillPresent {
			orphans = append(orphans, removed)
		}
	}

	parquetFiles := make([]string, 0, len(replay.LiveArtifacts))
	for p := range replay.LiveArtifacts {
		parquetFiles = append(parquetFiles, p)
	}

	metrics.OrphanCount.Set(float64(len(orphans)))

	return ReconcileResult{
		ParquetFiles:      parquetFiles,
		OrphanedJSONFiles: orphans,
		OrphanCount:       len(orphans),
	}, nil
}

// CleanupResult reports what Cleanup deleted (spec §6 DELETE /cleanup).
type CleanupResult struct {
	DeletedCount int
	DeletedFiles []string
}

// Cleanup deletes every orphan reported by Reconcile. Safe to run at any
// time: staging keys are UUIDs, never reused, so deletion is idempotent
// with respect to both replay and concurrent gateway writers.
func (c *Compactor) Cleanup(ctx context.Context) (CleanupResult, error) {
	report, err := c.Reconcile(ctx)
	if err != nil {
		return CleanupResult{}, err
	}

	var deleted []string
	for _, key := range report.OrphanedJSONFiles {
		if err := c.store.Delete(ctx, key); err != nil {
			log.WithComponent("compactor").Warn().Err(err).Str("key", key).Msg("failed to delete orphan")
			continue
		}
		deleted = append(deleted, key)
	}

	metrics.OrphanCount.Set(float64(len(report.OrphanedJSONFiles) - len(deleted)))

	return CleanupResult{DeletedCount: len(deleted), DeletedFiles: deleted}, nil
}
