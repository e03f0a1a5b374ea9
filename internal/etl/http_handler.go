package etl

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/labetl/internal/domain"
)

// Handler exposes the ETL service over HTTP: an index page, the trigger
// endpoint, and the results/runs fetch endpoints.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with the three public endpoints.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		h.handleIndex(w, r)
	case "/trigger-etl":
		h.handleTrigger(w, r)
	case "/etl-results":
		h.handleResults(w, r)
	case "/etl-runs":
		h.handleRuns(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, nil); err != nil {
		log.Printf("[HTTP] render index: %v", err)
	}
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result := h.service.Run(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if result.Status == domain.RunStatusSuccess {
		w.WriteHeader(http.StatusOK)
		if err := successTemplate.Execute(w, viewData{StatusCode: http.StatusOK, Message: result.Message}); err != nil {
			log.Printf("[HTTP] render success view: %v", err)
		}
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	if err := errorTemplate.Execute(w, viewData{StatusCode: http.StatusInternalServerError, Message: result.Message}); err != nil {
		log.Printf("[HTTP] render error view: %v", err)
	}
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	table, err := h.service.Results(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, table.RowMaps())
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.service.Runs(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("list runs: %v", err),
		})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
