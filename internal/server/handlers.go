package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/nemuri/internal/catalog"
	"github.com/hyperjump/nemuri/internal/score"
	"github.com/hyperjump/nemuri/internal/stats"
)

func (s *Server) handleRater(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"rater":  s.store.Rater(),
		"raters": s.store.Raters(),
	})
}

// stagesFilter translates the stages query parameter into a store filter:
// absent means nil (all epochs), present means the comma-separated set,
// which may be empty and then matches nothing.
func stagesFilter(r *http.Request) []string {
	values, ok := r.URL.Query()["stages"]
	if !ok {
		return nil
	}
	filter := []string{}
	for _, v := range values {
		for _, stage := range strings.Split(v, ",") {
			if stage = strings.TrimSpace(stage); stage != "" {
				filter = append(filter, stage)
			}
		}
	}
	return filter
}

func (s *Server) handleEpochs(w http.ResponseWriter, r *http.Request) {
	filter := stagesFilter(r)
	epochs := s.store.Epochs(filter)
	s.logger.Debug("epochs request", zap.Strings("stages", filter), zap.Int("matched", len(epochs)))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"rater":  s.store.Rater(),
		"epochs": epochs,
	})
}

func (s *Server) handleGetStage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stage, err := s.store.Stage(id)
	if err != nil {
		var notFound *score.EpochNotFoundError
		if errors.As(err, &notFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("stage lookup failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "stage": stage})
}

type setStageRequest struct {
	Stage string `json:"stage"`
}

func (s *Server) handleSetStage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req setStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Stage == "" {
		s.respondError(w, http.StatusBadRequest, "stage is required")
		return
	}
	s.logger.Debug("set stage request", zap.String("id", id), zap.String("stage", req.Stage))
	if err := s.store.SetStage(id, req.Stage); err != nil {
		var notFound *score.EpochNotFoundError
		if errors.As(err, &notFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("set stage failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "stage": req.Stage, "status": "saved"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sum := stats.Compute(s.store.Rater(), s.store.Epochs(nil), nil)
	s.respondJSON(w, http.StatusOK, sum)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	epochs := s.store.Epochs(nil)
	resp := map[string]interface{}{
		"document": s.store.Path(),
		"rater":    s.store.Rater(),
		"epochs":   len(epochs),
	}
	if s.catalog != nil {
		count, err := s.catalog.Count(r.Context())
		if err != nil {
			s.logger.Error("status: catalog count failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["cataloged_documents"] = count
		if entries, err := s.catalog.List(r.Context()); err == nil {
			paths := make([]string, 0, len(entries))
			for _, e := range entries {
				paths = append(paths, e.Path)
			}
			if diskBytes, err := catalog.DiskUsageBytes(paths...); err == nil {
				resp["disk_usage_bytes"] = diskBytes
			}
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
