package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lakeside-io/lakeside/pkg/compactor"
	"github.com/lakeside-io/lakeside/pkg/lakeerrors"
	"github.com/lakeside-io/lakeside/pkg/log"
)

// compactionHandlers implements the compaction service HTTP surface
// (spec §6): POST/GET /, GET /transactions, GET /reconcile, DELETE
// /cleanup.
type compactionHandlers struct {
	c *compactor.Compactor
}

func (h compactionHandlers) mount(r chi.Router) {
	r.Post("/", h.run)
	r.Get("/", h.status)
	r.Get("/transactions", h.transactions)
	r.Get("/reconcile", h.reconcile)
	r.Delete("/cleanup", h.cleanup)
}

type runResponse struct {
	TransactionVersion int      `json:"transactionVersion"`
	Partitions         int      `json:"partitions"`
	FilesCompacted     int      `json:"filesCompacted"`
	TotalRows          int      `json:"totalRows"`
	ParquetFiles       []string `json:"parquetFiles"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h compactionHandlers) run(w http.ResponseWriter, r *http.Request) {
	res, err := h.c.Run(r.Context())
	if err != nil {
		writeCompactionError(w, err)
		return
	}
	if res.Empty {
		writeJSON(w, http.StatusOK, messageResponse{Message: "No files to compact"})
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		TransactionVersion: res.TransactionVersion,
		Partitions:         res.Partitions,
		FilesCompacted:     res.FilesCompacted,
		TotalRows:          res.TotalRows,
		ParquetFiles:       res.ParquetFiles,
	})
}

func (h compactionHandlers) status(w http.ResponseWriter, r *http.Request) {
	state, err := h.c.Status(r.Context())
	if err != nil {
		writeCompactionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h compactionHandlers) transactions(w http.ResponseWriter, r *http.Request) {
	result, err := h.c.Transactions(r.Context())
	if err != nil {
		writeCompactionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Entries)
}

type reconcileResponse struct {
	ParquetFiles      []string `json:"parquetFiles"`
	OrphanedJSONFiles []string `json:"orphanedJsonFiles"`
	OrphanCount       int      `json:"orphanCount"`
}

func (h compactionHandlers) reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.c.Reconcile(r.Context())
	if err != nil {
		writeCompactionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{
		ParquetFiles:      report.ParquetFiles,
		OrphanedJSONFiles: report.OrphanedJSONFiles,
		OrphanCount:       report.OrphanCount,
	})
}

type cleanupResponse struct {
	DeletedCount int      `json:"deletedCount"`
	DeletedFiles []string `json:"deletedFiles"`
}

func (h compactionHandlers) cleanup(w http.ResponseWriter, r *http.Request) {
	result, err := h.c.Cleanup(r.Context())
	if err != nil {
		writeCompactionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{
		DeletedCount: result.DeletedCount,
		DeletedFiles: result.DeletedFiles,
	})
}

// writeCompactionError maps the spec §7 error taxonomy to status codes
// via errors.Is rather than string matching.
func writeCompactionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lakeerrors.ErrBusy):
		writeJSON(w, http.StatusConflict, messageResponse{Message: err.Error()})
	case errors.Is(err, lakeerrors.ErrSchemaUnavailable),
		errors.Is(err, lakeerrors.ErrPartitionReadFailed),
		errors.Is(err, lakeerrors.ErrEncodeFailed),
		errors.Is(err, lakeerrors.ErrLogContention):
		log.WithComponent("api").Error().Err(err).Msg("compaction request failed")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: err.Error()})
	default:
		log.WithComponent("api").Error().Err(err).Msg("unexpected compaction error")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "internal error"})
	}
}
