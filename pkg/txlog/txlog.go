// Package txlog implements the Transaction Log (spec §4.2): an append-only,
// monotonically versioned record of add/remove file actions, with a
// compare-and-swap precondition on version assignment.
package txlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/lakeside-io/lakeside/pkg/lakeerrors"
	"github.com/lakeside-io/lakeside/pkg/log"
	"github.com/lakeside-io/lakeside/pkg/metrics"
	"github.com/lakeside-io/lakeside/pkg/objectstore"
	"github.com/lakeside-io/lakeside/pkg/types"
)

const prefix = "_log/"

var versionPattern = regexp.MustCompile(`^_log/(\d+)\.json$`)

// DefaultMaxAppendAttempts bounds Append's CAS retry loop. Spec §4.2
// requires "a bounded number of attempts (implementation chooses bound;
// must be >= small constant)".
const DefaultMaxAppendAttempts = 8

// Log is the transaction log, backed by an object store.
type Log struct {
	store             objectstore.Store
	maxAppendAttempts int
}

// New creates a transaction log over store. maxAppendAttempts <= 0 uses
// DefaultMaxAppendAttempts.
func New(store objectstore.Store, maxAppendAttempts int) *Log {
	if maxAppendAttempts <= 0 {
		maxAppendAttempts = DefaultMaxAppendAttempts
	}
	return &Log{store: store, maxAppendAttempts: maxAppendAttempts}
}

func key(version int) string {
	return fmt.Sprintf("%s%08d.json", prefix, version)
}

// NextVersion is an advisory read: it lists _log/, parses filenames, and
// returns max+1 (or 0 if empty). It is never the source of exclusivity —
// Append's CAS precondition is.
func (l *Log) NextVersion(ctx context.Context) (int, error) {
	versions, err := l.listVersions(ctx)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1] + 1, nil
}

func (l *Log) listVersions(ctx context.Context) ([]int, error) {
	keys, err := l.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("txlog: list %s: %w", prefix, err)
	}

	versions := make([]int, 0, len(keys))
	for _, k := range keys {
		m := versionPattern.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

// Append computes the next version, constructs the full entry, and writes
// it to _log/<version:08d>.json with a precondition that the key does not
// already exist. On CAS failure it recomputes NextVersion and retries, up
// to maxAppendAttempts times, returning lakeerrors.ErrLogContention if the
// budget is exhausted.
func (l *Log) Append(ctx context.Context, entry types.TransactionEntry) (int, error) {
	var lastErr error
	for attempt := 0; attempt < l.maxAppendAttempts; attempt++ {
		version, err := l.NextVersion(ctx)
		if err != nil {
			return 0, err
		}

		full := entry
		full.Version = version

		data, err := json.Marshal(full)
		if err != nil {
			return 0, fmt.Errorf("txlog: marshal entry: %w", err)
		}

		err = l.store.Put(ctx, key(version), data, objectstore.PutOptions{IfNotExists: true})
		if err == nil {
			return version, nil
		}
		if errors.Is(err, objectstore.ErrPreconditionFailed) {
			lastErr = err
			metrics.LogAppendRetries.Inc()
			log.WithComponent("txlog").Warn().
				Int("attempt", attempt+1).
				Int("version", version).
				Msg("CAS append lost race, retrying")
			continue
		}
		return 0, fmt.Errorf("txlog: put %s: %w", key(version), err)
	}
	return 0, fmt.Errorf("%w (last: %v)", lakeerrors.ErrLogContention, lastErr)
}

// ReadAllResult is the ordered log plus any detected version gaps.
type ReadAllResult struct {
	Entries         []types.TransactionEntry
	MissingVersions []int
}

// ReadAll lists _log/, fetches and parses every entry, and sorts by
// version ascending. Gaps in version numbering are reported but never
// crash the reader.
func (l *Log) ReadAll(ctx context.Context) (ReadAllResult, error) {
	keys, err := l.store.List(ctx, prefix)
	if err != nil {
		return ReadAllResult{}, fmt.Errorf("txlog: list %s: %w", prefix, err)
	}

	entries := make([]types.TransactionEntry, 0, len(keys))
	for _, k := range keys {
		if versionPattern.FindStringSubmatch(k) == nil {
			continue
		}
		obj, err := l.store.Get(ctx, k)
		if err != nil {
			log.WithComponent("txlog").Warn().Str("key", k).Err(err).Msg("failed to read log entry")
			continue
		}
		var entry types.TransactionEntry
		if err := json.Unmarshal(obj.Content, &entry); err != nil {
			log.WithComponent("txlog").Warn().Str("key", k).Err(err).Msg("failed to parse log entry")
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })

	missing := missingVersions(entries)
	metrics.LogVersionGaps.Set(float64(len(missing)))

	return ReadAllResult{Entries: entries, MissingVersions: missing}, nil
}

func missingVersions(entries []types.TransactionEntry) []int {
	if len(entries) == 0 {
		return nil
	}
	present := make(map[int]bool, len(entries))
	max := 0
	for _, e := range entries {
		present[e.Version] = true
		if e.Version > max {
			max = e.Version
		}
	}
	var missing []int
	for v := 0; v < max; v++ {
		if !present[v] {
			missing = append(missing, v)
		}
	}
	return missing
}

// ReplayResult is the folded liveness view of the log.
type ReplayResult struct {
	LiveArtifacts  map[string]struct{}
	RemovedStaging map[string]struct{}
}

// Replay folds entries in version order: each add.path joins LiveArtifacts,
// each remove.path joins RemovedStaging. Re-adding a removed path is
// permitted and logically re-adds it. Only operation=compact entries
// contribute — schema_change and cleanup entries are reserved for future
// use and are ignored by this liveness computation (spec §9).
func Replay(entries []types.TransactionEntry) ReplayResult {
	result := ReplayResult{
		LiveArtifacts:  make(map[string]struct{}),
		RemovedStaging: make(map[string]struct{}),
	}
	for _, entry := range entries {
		if entry.Operation != types.OperationCompact {
			continue
		}
		for _, a := range entry.Add {
			result.LiveArtifacts[a.Path] = struct{}{}
		}
		for _, r := range entry.Remove {
			result.RemovedStaging[r.Path] = struct{}{}
		}
	}
	return result
}
