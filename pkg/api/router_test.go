package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeside-io/lakeside/pkg/compactor"
	"github.com/lakeside-io/lakeside/pkg/coordinator"
	"github.com/lakeside-io/lakeside/pkg/gateway"
	"github.com/lakeside-io/lakeside/pkg/objectstore"
	"github.com/lakeside-io/lakeside/pkg/schema"
	"github.com/lakeside-io/lakeside/pkg/txlog"
	"github.com/lakeside-io/lakeside/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := objectstore.NewMemStore()
	clock := clockwork.NewFakeClock()
	sm := schema.New(store, 0)
	require.NoError(t, sm.Put(context.Background(), types.Schema{Fields: []types.SchemaField{
		{Name: "order_id", PrimitiveType: "string"},
	}}))
	coord := coordinator.New(store, clock, 0, "test-lock")
	t.Cleanup(coord.Close)
	txl := txlog.New(store, 0)
	c := compactor.New(store, sm, coord, txl, clock)
	gw := gateway.New(store, sm, clock)
	return NewServer(c, gw)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestCompactionRunEmptyLake(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No files to compact")
}

func TestGatewayPutThenCompactionRun(t *testing.T) {
	s := newTestServer(t)

	putReq := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"order_id":"a1"}`))
	putRec := httptest.NewRecorder()
	s.ServeHTTP(putRec, putReq)
	require.Equal(t, http.StatusOK, putRec.Code)

	runReq := httptest.NewRequest(http.MethodPost, "/", nil)
	runRec := httptest.NewRecorder()
	s.ServeHTTP(runRec, runReq)

	assert.Equal(t, http.StatusOK, runRec.Code)
	var resp runResponse
	require.NoError(t, json.Unmarshal(runRec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.FilesCompacted)
	assert.Equal(t, 1, resp.TotalRows)
}

func TestCompactionStatusRoute(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var state types.CoordinatorState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.False(t, state.Busy)
}

func TestConcurrentCompactionRunsOnlyOneWins(t *testing.T) {
	s := newTestServer(t)

	putReq := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"order_id":"a1"}`))
	putRec := httptest.NewRecorder()
	s.ServeHTTP(putRec, putReq)
	require.Equal(t, http.StatusOK, putRec.Code)

	const attempts = 8
	codes := make([]int, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	var ok, busy int
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			busy++
		default:
			t.Fatalf("unexpected status code %d", code)
		}
	}
	assert.Equal(t, 1, ok, "exactly one concurrent compaction run should succeed")
	assert.Equal(t, attempts-1, busy, "every other concurrent run should observe 409 busy")
}

func TestReconcileAndCleanupRoutes(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/reconcile", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	delReq := httptest.NewRequest(http.MethodDelete, "/cleanup", nil)
	delRec := httptest.NewRecorder()
	s.ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusOK, delRec.Code)
}
