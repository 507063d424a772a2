package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
	"github.com/m-mizutani/komainu/pkg/domain/model/prompt"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
	"github.com/m-mizutani/komainu/pkg/utils/safe"
)

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req interfaces.CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, goerr.Wrap(err, "failed to decode call request",
			goerr.T(apperr.ErrTagInvalidInput)))
		return
	}

	resp, err := s.call.CallWithSafety(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleRegisterPrompt(w http.ResponseWriter, r *http.Request) {
	var version prompt.Version
	if err := json.NewDecoder(r.Body).Decode(&version); err != nil {
		respondError(w, r, goerr.Wrap(err, "failed to decode prompt version",
			goerr.T(apperr.ErrTagInvalidInput)))
		return
	}

	if err := s.registry.RegisterPrompt(r.Context(), &version); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, &version)
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	ids, err := s.registry.ListActivePrompts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string][]types.PromptID{"prompts": ids})
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	id := types.PromptID(chi.URLParam(r, "promptID"))
	version := r.URL.Query().Get("version")

	v, err := s.registry.GetPrompt(r.Context(), id, version)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, v)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	id := types.PromptID(chi.URLParam(r, "promptID"))

	versions, err := s.registry.ListPromptVersions(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string][]*prompt.Version{"versions": versions})
}

type deprecateRequest struct {
	Sunset time.Time `json:"sunset,omitempty"`
}

func (s *Server) handleDeprecate(w http.ResponseWriter, r *http.Request) {
	id := types.PromptID(chi.URLParam(r, "promptID"))
	version := chi.URLParam(r, "version")

	var req deprecateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, r, goerr.Wrap(err, "failed to decode deprecate request",
				goerr.T(apperr.ErrTagInvalidInput)))
			return
		}
	}

	if err := s.registry.DeprecatePrompt(r.Context(), id, version, req.Sunset); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetire(w http.ResponseWriter, r *http.Request) {
	id := types.PromptID(chi.URLParam(r, "promptID"))
	version := chi.URLParam(r, "version")

	if err := s.registry.RetirePrompt(r.Context(), id, version); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportPrompts(w http.ResponseWriter, r *http.Request) {
	doc, err := s.registry.ExportPrompts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, doc)
}

func (s *Server) handleImportPrompts(w http.ResponseWriter, r *http.Request) {
	var doc prompt.StoreDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		respondError(w, r, goerr.Wrap(err, "failed to decode store document",
			goerr.T(apperr.ErrTagInvalidInput)))
		return
	}

	if err := s.registry.ImportPrompts(r.Context(), &doc); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	promptID := types.PromptID(r.URL.Query().Get("prompt_id"))

	m, err := s.metrics.GetMetrics(r.Context(), promptID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, m)
}

func (s *Server) handleExportMetrics(w http.ResponseWriter, r *http.Request) {
	export, err := s.metrics.ExportMetrics(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, export)
}

func (s *Server) handleCheckHealth(w http.ResponseWriter, r *http.Request) {
	health := s.metrics.CheckHealth(r.Context())

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, r, status, health)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	promptID := types.PromptID(r.URL.Query().Get("prompt_id"))

	report := s.metrics.FormatReport(r.Context(), promptID)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	safe.Write(r.Context(), w, []byte(report))
}
