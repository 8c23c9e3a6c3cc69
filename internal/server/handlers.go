package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/shoroku/internal/indexer"
	"github.com/hyperjump/shoroku/internal/models"
	"github.com/hyperjump/shoroku/internal/search"
	"go.uber.org/zap"
)

type addDocumentsRequest struct {
	Documents []*models.Document `json:"documents"`
	Embed     bool               `json:"embed"`
}

type ingestRequest struct {
	DocumentIDs []string `json:"document_ids,omitempty"`
	// Limit caps how many pending documents are embedded when no ids are given; 0 means all.
	Limit int `json:"limit,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := search.ProcessQuery(&query, s.config.Query.DefaultLimit); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var req addDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		s.respondError(w, http.StatusBadRequest, "documents are required")
		return
	}
	s.logger.Debug("add documents request", zap.Int("count", len(req.Documents)), zap.Bool("embed", req.Embed))
	report, err := s.indexer.AddDocuments(r.Context(), req.Documents, req.Embed)
	if err != nil {
		s.fail(w, "adding documents failed", err)
		return
	}
	ids := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		ids[i] = d.ID
	}
	resp := map[string]interface{}{"ids": ids, "status": "stored"}
	if report != nil {
		resp["status"] = "ingested"
		resp["report"] = report
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var (
		report *indexer.Report
		err    error
	)
	if len(req.DocumentIDs) > 0 {
		report, err = s.indexer.EmbedDocuments(r.Context(), req.DocumentIDs)
	} else {
		report, err = s.indexer.EmbedPending(r.Context(), req.Limit)
	}
	if err != nil {
		s.fail(w, "ingestion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.fail(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetChunks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.storage.GetDocument(r.Context(), id); err != nil {
		s.fail(w, "get chunks failed", err)
		return
	}
	records, err := s.storage.GetRecordsByDocumentID(r.Context(), id)
	if err != nil {
		s.fail(w, "get chunks failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"document_id": id, "chunks": records})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.indexer.DeleteDocument(r.Context(), id); err != nil {
		s.fail(w, "deletion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type diskUser interface {
	DiskUsage() (int64, error)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.fail(w, "status: count documents failed", err)
		return
	}
	recordCount, err := s.storage.CountRecords(ctx)
	if err != nil {
		s.fail(w, "status: count records failed", err)
		return
	}
	resp := map[string]interface{}{
		"documents":            docCount,
		"records":              recordCount,
		"embedding_dimensions": s.storage.Dimensions(),
	}
	if du, ok := s.storage.(diskUser); ok {
		if n, err := du.DiskUsage(); err == nil {
			resp["disk_usage_bytes"] = n
		}
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"storage_driver":     s.config.Storage.Driver,
			"database_path":      s.config.Storage.DatabasePath,
			"embedding_provider": s.config.Embedding.Provider,
			"embedding_model":    s.config.Embedding.Model,
			"chunk_size":         s.config.Ingest.ChunkSize,
			"chunk_overlap":      s.config.Ingest.Overlap(),
			"batch_size":         s.config.Ingest.BatchSize,
			"workers":            s.config.Ingest.Workers,
			"default_limit":      s.config.Query.DefaultLimit,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes. Bad provider output during an
// ingestion run is a 502 and unreadable stored records are a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case indexer.FailedStage(err) == indexer.StateEmbedding:
		return http.StatusBadGateway
	case errors.Is(err, models.ErrCorruptRecord):
		return http.StatusInternalServerError
	case errors.Is(err, models.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateChunk), errors.Is(err, models.ErrDuplicateDocument):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnknownDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidConfig),
		errors.Is(err, models.ErrInvalidLimit),
		errors.Is(err, models.ErrDimensionMismatch),
		errors.Is(err, models.ErrNonFiniteEmbedding):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
