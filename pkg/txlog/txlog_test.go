package txlog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lakeside-io/lakeside/pkg/objectstore"
	"github.com/lakeside-io/lakeside/pkg/types"
)

func TestAppendAssignsDenseVersions(t *testing.T) {
	store := objectstore.NewMemStore()
	l := New(store, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := l.Append(ctx, types.TransactionEntry{Operation: types.OperationCompact})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if v != i {
			t.Errorf("Append() version = %d, want %d", v, i)
		}
	}
}

func TestNextVersionEmptyLog(t *testing.T) {
	store := objectstore.NewMemStore()
	l := New(store, 0)

	v, err := l.NextVersion(context.Background())
	if err != nil {
		t.Fatalf("NextVersion() error = %v", err)
	}
	if v != 0 {
		t.Errorf("NextVersion() = %d, want 0", v)
	}
}

func TestReadAllOrdersAndDetectsGaps(t *testing.T) {
	store := objectstore.NewMemStore()
	ctx := context.Background()

	// Write versions 0, 1, 3 directly, skipping 2, to simulate a gap.
	for _, v := range []int{0, 1, 3} {
		entry := types.TransactionEntry{Version: v, Operation: types.OperationCompact}
		data, _ := marshalForTest(entry)
		if err := store.Put(ctx, key(v), data, objectstore.PutOptions{}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	l := New(store, 0)
	result, err := l.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(result.Entries) != 3 {
		t.Fatalf("ReadAll() entries = %d, want 3", len(result.Entries))
	}
	if len(result.MissingVersions) != 1 || result.MissingVersions[0] != 2 {
		t.Errorf("MissingVersions = %v, want [2]", result.MissingVersions)
	}
}

func TestReplayFoldsAddsAndRemoves(t *testing.T) {
	size := int64(100)
	entries := []types.TransactionEntry{
		{
			Version:   0,
			Operation: types.OperationCompact,
			Add:       []types.FileAction{{Path: "parquet/p=A/part-1.parquet", Size: &size}},
			Remove:    []types.FileAction{{Path: "data/p=A/a.json"}, {Path: "data/p=A/b.json"}},
		},
		{
			Version:   1,
			Operation: types.OperationCleanup,
			Remove:    []types.FileAction{{Path: "data/p=A/a.json"}},
		},
	}

	result := Replay(entries)

	if _, ok := result.LiveArtifacts["parquet/p=A/part-1.parquet"]; !ok {
		t.Error("expected artifact to be live")
	}
	if _, ok := result.RemovedStaging["data/p=A/a.json"]; !ok {
		t.Error("expected a.json to be removed")
	}
	if _, ok := result.RemovedStaging["data/p=A/b.json"]; !ok {
		t.Error("expected b.json to be removed")
	}
	// The cleanup entry's remove must NOT have contributed anything new —
	// there's nothing to assert beyond a.json already being present, since
	// cleanup entries are ignored outright. Verify via count: only 2 keys.
	if len(result.RemovedStaging) != 2 {
		t.Errorf("RemovedStaging = %v, want 2 entries", result.RemovedStaging)
	}
}

func TestAppendSkipsExistingVersion(t *testing.T) {
	store := objectstore.NewMemStore()
	ctx := context.Background()

	// Pre-create version 0; NextVersion sees it, so Append lands on 1.
	data, _ := marshalForTest(types.TransactionEntry{Version: 0, Operation: types.OperationCompact})
	if err := store.Put(ctx, key(0), data, objectstore.PutOptions{IfNotExists: true}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	l := New(store, 0)
	v, err := l.Append(ctx, types.TransactionEntry{Operation: types.OperationCompact})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if v != 1 {
		t.Errorf("Append() version = %d, want 1", v)
	}
}

func TestAppendContentionExhaustsRetries(t *testing.T) {
	// A log whose store always rejects IfNotExists writes. Exercises the
	// bounded-retry -> lakeerrors.ErrLogContention path.
	store := &alwaysContendedStore{MemStore: objectstore.NewMemStore()}
	l := New(store, 3)

	_, err := l.Append(context.Background(), types.TransactionEntry{Operation: types.OperationCompact})
	if err == nil {
		t.Fatal("Append() error = nil, want contention error")
	}
}

type alwaysContendedStore struct {
	*objectstore.MemStore
}

func (s *alwaysContendedStore) Put(ctx context.Context, key string, content []byte, opts objectstore.PutOptions) error {
	if opts.IfNotExists {
		return objectstore.ErrPreconditionFailed
	}
	return s.MemStore.Put(ctx, key, content, opts)
}

func marshalForTest(entry types.TransactionEntry) ([]byte, error) {
	return json.Marshal(entry)
}
