package compactor

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/lakeside-io/lakeside/pkg/coordinator"
	"github.com/lakeside-io/lakeside/pkg/encoder"
	"github.com/lakeside-io/lakeside/pkg/lakeerrors"
	"github.com/lakeside-io/lakeside/pkg/objectstore"
	"github.com/lakeside-io/lakeside/pkg/schema"
	"github.com/lakeside-io/lakeside/pkg/txlog"
	"github.com/lakeside-io/lakeside/pkg/types"
)

func newTestCompactor(t *testing.T) (*Compactor, objectstore.Store, clockwork.FakeClock) {
	t.Helper()
	store := objectstore.NewMemStore()
	clock := clockwork.NewFakeClock()
	sm := schema.New(store, 0)
	coord := coordinator.New(store, clock, 0, "test-lock")
	t.Cleanup(coord.Close)
	txl := txlog.New(store, 0)
	return New(store, sm, coord, txl, clock), store, clock
}

func seedSchema(t *testing.T, store objectstore.Store) {
	t.Helper()
	sm := schema.New(store, 0)
	s := types.Schema{Fields: []types.SchemaField{
		{Name: "order_id", PrimitiveType: "string"},
		{Name: "amount", PrimitiveType: "double"},
	}}
	if err := sm.Put(context.Background(), s); err != nil {
		t.Fatalf("seedSchema: Put() error = %v", err)
	}
}

func TestRunEmptyLakeIsNotAnError(t *testing.T) {
	c, store, _ := newTestCompactor(t)
	seedSchema(t, store)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Empty {
		t.Error("Run() Empty = false, want true")
	}
}

func TestRunFailsFastWithoutSchema(t *testing.T) {
	c, store, _ := newTestCompactor(t)
	ctx := context.Background()
	if err := store.Put(ctx, "data/order_id=a/1.json", []byte(`{"order_id":"a","amount":1}`), objectstore.PutOptions{}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	_, err := c.Run(ctx)
	if !errors.Is(err, lakeerrors.ErrSchemaUnavailable) {
		t.Fatalf("Run() error = %v, want ErrSchemaUnavailable", err)
	}

	status, statusErr := c.Status(ctx)
	if statusErr != nil {
		t.Fatalf("Status() error = %v", statusErr)
	}
	if status.Busy {
		t.Error("Status().Busy = true after a pre-lock failure, want false")
	}
}

func TestRunSinglePartitionCompaction(t *testing.T) {
	c, store, _ := newTestCompactor(t)
	ctx := context.Background()
	seedSchema(t, store)

	if err := store.Put(ctx, "data/order_id=a/1.json", []byte(`{"order_id":"a","amount":1.5}`), objectstore.PutOptions{}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}
	if err := store.Put(ctx, "data/order_id=a/2.ndjson",
		[]byte("{\"order_id\":\"a2\",\"amount\":2}\n{\"order_id\":\"a3\",\"amount\":3}\n"),
		objectstore.PutOptions{}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	res, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Empty {
		t.Fatal("Run() Empty = true, want a compaction to have run")
	}
	if res.TransactionVersion != 0 {
		t.Errorf("Run() TransactionVersion = %d, want 0", res.TransactionVersion)
	}
	if res.Partitions != 1 {
		t.Errorf("Run() Partitions = %d, want 1", res.Partitions)
	}
	if res.FilesCompacted != 2 {
		t.Errorf("Run() FilesCompacted = %d, want 2", res.FilesCompacted)
	}
	if res.TotalRows != 3 {
		t.Errorf("Run() TotalRows = %d, want 3", res.TotalRows)
	}
	if len(res.ParquetFiles) != 1 {
		t.Fatalf("Run() ParquetFiles = %v, want 1 entry", res.ParquetFiles)
	}

	artifact, err := store.Get(ctx, res.ParquetFiles[0])
	if err != nil {
		t.Fatalf("Get(%s) error = %v", res.ParquetFiles[0], err)
	}
	records, _, err := encoder.Decode(artifact.Content)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Decode() = %d records, want 3", len(records))
	}

	if _, err := store.Get(ctx, "data/order_id=a/1.json"); err == nil {
		t.Error("staging object 1.json still present after reclaim")
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Busy {
		t.Error("Status().Busy = true after a committed compaction, want false")
	}
}

func TestRunReturnsBusyWhenLockHeld(t *testing.T) {
	c, store, _ := newTestCompactor(t)
	ctx := context.Background()
	seedSchema(t, store)
	if err := store.Put(ctx, "data/order_id=a/1.json", []byte(`{"order_id":"a","amount":1}`), objectstore.PutOptions{}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	if _, err := c.coord.TryAcquire(ctx, []string{"data/order_id=a/1.json"}); err != nil {
		t.Fatalf("TryAcquire() error = %v", err)
	}

	_, err := c.Run(ctx)
	if !errors.Is(err, lakeerrors.ErrBusy) {
		t.Fatalf("Run() error = %v, want ErrBusy", err)
	}
}

func TestReconcileDetectsOrphanAndCleanupRemovesIt(t *testing.T) {
	c, store, clock := newTestCompactor(t)
	ctx := context.Background()

	// Simulate a committed compaction whose reclaim of one key failed,
	// without actually deleting the key from the store.
	orphanKey := "data/order_id=a/orphan.json"
	if err := store.Put(ctx, orphanKey, []byte(`{"order_id":"a"}`), objectstore.PutOptions{}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	size := int64(10)
	rows := int64(1)
	txl := txlog.New(store, 0)
	entry := types.TransactionEntry{
		Timestamp: clock.Now(),
		Operation: types.OperationCompact,
		Add:       []types.FileAction{{Path: "parquet/order_id=a/part-x.lkcol", Size: &size, RowCount: &rows}},
		Remove:    []types.FileAction{{Path: orphanKey}},
	}
	if _, err := txl.Append(ctx, entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	report, err := c.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if report.OrphanCount != 1 || report.OrphanedJSONFiles[0] != orphanKey {
		t.Fatalf("Reconcile() = %+v, want one orphan %s", report, orphanKey)
	}

	cleanup, err := c.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if cleanup.DeletedCount != 1 {
		t.Fatalf("Cleanup() DeletedCount = %d, want 1", cleanup.DeletedCount)
	}

	report2, err := c.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}
	if report2.OrphanCount != 0 {
		t.Errorf("Reconcile() after Cleanup = %d orphans, want 0", report2.OrphanCount)
	}
}

// deleteFailingStore rejects every Delete, simulating a reclaim step that
// can't remove staging objects after a committed compaction.
type deleteFailingStore struct {
	objectstore.Store
}

func (s *deleteFailingStore) Delete(ctx context.Context, key string) error {
	return errors.New("simulated delete failure")
}

func TestRunSucceedsWithReclaimDeferredOnDeleteFailure(t *testing.T) {
	backing := objectstore.NewMemStore()
	store := &deleteFailingStore{Store: backing}
	clock := clockwork.NewFakeClock()
	sm := schema.New(store, 0)
	coord := coordinator.New(store, clock, 0, "reclaim-fail-lock")
	t.Cleanup(coord.Close)
	txl := txlog.New(store, 0)
	c := New(store, sm, coord, txl, clock)

	ctx := context.Background()
	seedSchema(t, store)
	if err := store.Put(ctx, "data/order_id=a/1.json", []byte(`{"order_id":"a","amount":1}`), objectstore.PutOptions{}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	res, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil (reclaim failures must not surface as Run errors)", err)
	}
	if res.FilesCompacted != 1 {
		t.Fatalf("FilesCompacted = %d, want 1", res.FilesCompacted)
	}
	if len(res.ReclaimDeferred) != 1 {
		t.Fatalf("ReclaimDeferred = %v, want exactly one deferred key", res.ReclaimDeferred)
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Busy {
		t.Error("Status().Busy = true after Run, want false (lock must still release on post-commit failure)")
	}
}
