package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/miru/internal/embedding"
	"github.com/hyperjump/miru/internal/indexer"
	"github.com/hyperjump/miru/internal/models"
	"github.com/hyperjump/miru/internal/search"
	"github.com/hyperjump/miru/internal/storage"
)

// handleSearch accepts a JSON query document or a raw image body with ?top_k=.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Search.MaxBodyBytes)

	var (
		response *models.SearchResponse
		err      error
	)
	if isJSON(r.Header.Get("Content-Type")) {
		var query models.SearchQuery
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			s.respondError(w, bodyStatus(err), "invalid request body")
			return
		}
		s.logger.Debug("search request", zap.String("type", query.Type()), zap.Int("top_k", query.TopK))
		response, err = s.searcher.Search(r.Context(), &query)
	} else {
		topK := 0
		if v := r.URL.Query().Get("top_k"); v != "" {
			n, convErr := strconv.Atoi(v)
			if convErr != nil {
				s.respondError(w, http.StatusBadRequest, "top_k must be an integer")
				return
			}
			if n <= 0 {
				s.respondError(w, http.StatusBadRequest, "top_k must be positive")
				return
			}
			topK = n
		}
		image, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			s.respondError(w, bodyStatus(readErr), "failed to read request body")
			return
		}
		s.logger.Debug("raw image search request", zap.Int("bytes", len(image)), zap.Int("top_k", topK))
		response, err = s.searcher.SearchImage(r.Context(), image, topK)
	}
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("search failed", zap.Error(err))
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"database": s.config.Paths.Database,
		"indexed":  false,
	}
	db, err := storage.Load(s.config.Paths.Database)
	switch {
	case err == nil:
		resp["indexed"] = true
		resp["version"] = db.Version
		resp["model"] = db.Model
		resp["created"] = db.Created
		resp["catalogs"] = len(db.Catalogs)
		resp["pages"] = db.TotalPages()
		resp["dimension"] = db.Dimension()
	case errors.Is(err, storage.ErrNotFound):
	default:
		s.logger.Error("status: load database failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	if diskBytes, err := storage.DiskUsageBytes(s.config.Paths.Database, s.config.Paths.OutputDir); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"knowledge_base":     s.config.Paths.KnowledgeBase,
		"output_dir":         s.config.Paths.OutputDir,
		"embedding_provider": s.config.Embedding.Provider,
		"embedding_model":    s.config.Embedding.Model,
		"default_top_k":      s.config.Search.DefaultTopK,
		"watch_enabled":      s.config.Watch.Enabled,
	}
	resp["reindex"] = s.reindexState()
	s.respondJSON(w, http.StatusOK, resp)
}

type catalogSummary struct {
	Name       string `json:"name"`
	SourceFile string `json:"source_file"`
	Pages      int    `json:"pages"`
}

func (s *Server) handleCatalogs(w http.ResponseWriter, r *http.Request) {
	db, err := storage.Load(s.config.Paths.Database)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	out := make([]catalogSummary, 0, len(db.Catalogs))
	for _, c := range db.Catalogs {
		out = append(out, catalogSummary{Name: c.Name, SourceFile: c.SourceFile, Pages: len(c.Pages)})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"model":    db.Model,
		"catalogs": out,
	})
}

// handleReindex starts a rebuild in the background (202) or, with ?wait=true, runs it
// inline and returns the report. Both run on the server context, which only Stop cancels.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if s.rebuilder == nil {
		s.respondError(w, http.StatusNotImplemented, "reindex not enabled")
		return
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	s.reindexMu.Lock()
	if s.reindexing {
		s.reindexMu.Unlock()
		s.respondError(w, http.StatusConflict, "reindex already running")
		return
	}
	s.reindexing = true
	s.reindexMu.Unlock()

	if wait {
		report, err := s.runReindex(s.ctx)
		if err != nil {
			s.respondError(w, statusFor(err), err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, report)
		return
	}

	go func() {
		_, _ = s.runReindex(s.ctx)
	}()
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) runReindex(ctx context.Context) (*indexer.Report, error) {
	report, err := s.rebuilder.Rebuild(ctx)

	s.reindexMu.Lock()
	defer s.reindexMu.Unlock()
	s.reindexing = false
	s.lastRunAt = time.Now().UTC()
	if err != nil {
		s.lastError = err.Error()
		s.logger.Error("reindex failed", zap.Error(err))
		return nil, err
	}
	s.lastError = ""
	s.lastReport = report
	return report, nil
}

func (s *Server) reindexState() map[string]interface{} {
	s.reindexMu.Lock()
	defer s.reindexMu.Unlock()
	state := map[string]interface{}{"running": s.reindexing}
	if !s.lastRunAt.IsZero() {
		state["last_run_at"] = s.lastRunAt.Format(time.RFC3339)
	}
	if s.lastError != "" {
		state["last_error"] = s.lastError
	}
	if s.lastReport != nil {
		state["last_report"] = s.lastReport
	}
	return state
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrSchema), errors.Is(err, storage.ErrUnsupportedVersion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, search.ErrInvalidQuery),
		errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, search.ErrInvalidTopK),
		errors.Is(err, search.ErrDimensionMismatch),
		errors.Is(err, search.ErrModelMismatch),
		errors.Is(err, indexer.ErrModelMismatch),
		errors.Is(err, embedding.ErrEmptyInput),
		errors.Is(err, embedding.ErrTextUnsupported):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func bodyStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message})
}
