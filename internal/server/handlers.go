package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/simstore/internal/loader"
	"github.com/hyperjump/simstore/internal/models"
	"github.com/hyperjump/simstore/internal/retrieval"
	"github.com/hyperjump/simstore/internal/storage"
	"github.com/hyperjump/simstore/internal/vector"
)

const maxBodyBytes = 64 << 20

type ingestResponse struct {
	*retrieval.UpsertResult
	DurableCount int `json:"durable_count"`
	IndexedCount int `json:"indexed_count"`
}

type searchResponse struct {
	Collection string        `json:"collection"`
	Query      string        `json:"query"`
	K          int           `json:"k"`
	Results    []*models.Hit `json:"results"`
}

func (s *Server) store(w http.ResponseWriter, r *http.Request) (*retrieval.Store, bool) {
	st, err := s.registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.respondErr(w, err)
		return nil, false
	}
	return st, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	var out []*models.Stats
	for _, name := range s.registry.Names() {
		st, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		stats, err := st.Stats(r.Context())
		if err != nil {
			s.respondErr(w, err)
			return
		}
		out = append(out, stats)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"collections": out})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	res, err := st.Build(r.Context())
	if err != nil {
		s.logger.Error("build failed", zap.String("collection", st.Name()), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// handleUpsert accepts every JSON shape the file loader understands. ?replace=true truncates
// the collection and rebuilds it from the body.
func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	docs, err := loader.ParseJSON(body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("upsert request", zap.String("collection", st.Name()), zap.Int("documents", len(docs)))

	if replace, _ := strconv.ParseBool(r.URL.Query().Get("replace")); replace {
		res, err := st.Replace(r.Context(), docs)
		if err != nil {
			s.logger.Error("replace failed", zap.String("collection", st.Name()), zap.Error(err))
			s.respondErr(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, res)
		return
	}

	res, err := st.Upsert(r.Context(), docs)
	if err != nil {
		s.logger.Error("upsert failed", zap.String("collection", st.Name()), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	stats, err := st.Stats(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ingestResponse{
		UpsertResult: res,
		DurableCount: stats.DurableCount,
		IndexedCount: stats.IndexedCount,
	})
}

func (s *Server) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	doc, err := st.Get(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	res, err := st.Delete(r.Context(), id)
	if err != nil {
		s.logger.Error("deletion failed", zap.String("collection", st.Name()), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// handleDeleteText deletes by content for collections with content-addressed ids.
func (s *Server) handleDeleteText(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	text := r.URL.Query().Get("text")
	if text == "" {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			text = body.Text
		}
	}
	res, err := st.DeleteText(r.Context(), text)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.retrieval.DefaultK, s.retrieval.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("collection", st.Name()), zap.String("query", req.Query), zap.Int("k", req.K))
	hits, err := st.Search(r.Context(), req.Query, retrieval.SearchOptions{
		K:        req.K,
		Category: req.Category,
		MinScore: req.MinScore,
	})
	if err != nil {
		s.logger.Error("search failed", zap.String("collection", st.Name()), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, searchResponse{Collection: st.Name(), Query: req.Query, K: req.K, Results: hits})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	stats, err := st.Stats(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	cats, err := st.Categories(r.Context(), limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"collection": st.Name(), "categories": cats})
}

func statusFor(err error) int {
	var mismatch *vector.ErrDimensionMismatch
	switch {
	case errors.Is(err, retrieval.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, retrieval.ErrUnknownCollection), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, retrieval.ErrEmbedding):
		return http.StatusBadGateway
	case errors.As(err, &mismatch), errors.Is(err, storage.ErrDuplicateKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
