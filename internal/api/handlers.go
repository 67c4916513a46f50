package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/enrich"
	"github.com/sells-group/leadsync/internal/metrics"
	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/store"
)

const msgNamesRequired = "Please provide an array of names"

type createLeadsRequest struct {
	Names []string `json:"names"`
}

type leadsResponse struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Leads   []model.Lead `json:"leads"`
}

type syncResponse struct {
	Success bool   `json:"success"`
	Synced  int    `json:"synced"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeServerError(w http.ResponseWriter, msg string, err error) {
	zap.L().Error("api: "+msg, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msg, Details: err.Error()})
}

// handleCreateLeads enriches the submitted names and stores one lead per
// distinct name, in submission order.
func (s *Server) handleCreateLeads(w http.ResponseWriter, r *http.Request) {
	var req createLeadsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(enrich.Dedupe(req.Names)) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNamesRequired})
		return
	}

	results, err := s.processor.Process(r.Context(), req.Names)
	if err != nil {
		if model.IsValidation(err) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNamesRequired})
			return
		}
		writeServerError(w, "Failed to process leads", err)
		return
	}

	leads := make([]model.Lead, 0, len(results))
	for _, res := range results {
		lead, err := s.store.CreateLead(r.Context(), res.NewLead())
		if err != nil {
			writeServerError(w, "Failed to process leads", err)
			return
		}
		metrics.RecordLeadCreated(string(lead.Status))
		leads = append(leads, *lead)
	}

	writeJSON(w, http.StatusOK, leadsResponse{Success: true, Count: len(leads), Leads: leads})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	status, ok := model.ParseStatus(r.URL.Query().Get("status"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("Invalid status %q: expected %q or %q", r.URL.Query().Get("status"), model.StatusVerified, model.StatusToCheck),
		})
		return
	}

	leads, err := s.store.ListLeads(r.Context(), store.LeadFilter{Status: status})
	if err != nil {
		writeServerError(w, "Failed to fetch leads", err)
		return
	}

	writeJSON(w, http.StatusOK, leadsResponse{Success: true, Count: len(leads), Leads: leads})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	n, err := s.syncer.Run(r.Context())
	if err != nil {
		writeServerError(w, "Failed to sync leads", err)
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Success: true,
		Synced:  n,
		Message: fmt.Sprintf("Successfully synced %d verified leads", n),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.HealthTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
