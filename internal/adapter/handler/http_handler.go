package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/rl1809/manifest-sync/internal/core/domain"
	"github.com/rl1809/manifest-sync/internal/core/service"
)

const (
	SecretHeader    = "Pass"
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes    = 32 << 20
	maxRequestIDLen = 128
)

type HTTPHandler struct {
	syncService *service.SyncService
	secret      string
}

type SyncHTTPResponse struct {
	Status     domain.SyncStatus `json:"status"`
	Procesados map[string]int    `json:"procesados"`
	Errors     []string          `json:"errors"`
}

type StatsHTTPResponse struct {
	Totals map[string]int64      `json:"totals"`
	Recent []domain.SyncSummary `json:"recent"`
}

type ErrorHTTPResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(syncService *service.SyncService, secret string) *HTTPHandler {
	return &HTTPHandler{syncService: syncService, secret: secret}
}

// Register mounts the routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/sync", h.RequireSecret(h.Sync))
	mux.HandleFunc("/api/sync/stats", h.RequireSecret(h.Stats))
}

// RequireSecret rejects requests whose Pass header does not match the shared secret.
func (h *HTTPHandler) RequireSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			writeJSON(w, http.StatusForbidden, ErrorHTTPResponse{Error: "Unauthorized access"})
			return
		}
		next(w, r)
	}
}

func (h *HTTPHandler) Sync(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	w.Header().Set(RequestIDHeader, requestID)

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorHTTPResponse{Error: "Method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Printf("sync %s: read body: %v", requestID, err)
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "Invalid JSON"})
		return
	}

	payload, err := service.DecodePayload(body)
	if err != nil {
		log.Printf("sync %s: %v", requestID, err)
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "Invalid JSON"})
		return
	}

	summary, err := h.syncService.Sync(r.Context(), requestID, payload)
	if err != nil {
		log.Printf("sync %s: %v", requestID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorHTTPResponse{Error: "Database unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, SyncHTTPResponse{
		Status:     summary.Status,
		Procesados: summary.Processed,
		Errors:     summary.Errors,
	})
}

func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorHTTPResponse{Error: "Method not allowed"})
		return
	}

	totals, recent, err := h.syncService.Stats(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrJournalDisabled) {
			writeJSON(w, http.StatusServiceUnavailable, ErrorHTTPResponse{Error: "Sync journal disabled"})
			return
		}
		log.Printf("stats: %v", err)
		writeJSON(w, http.StatusInternalServerError, ErrorHTTPResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, StatsHTTPResponse{Totals: totals, Recent: recent})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.syncService.Ready(r.Context()); err != nil {
		log.Printf("health: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= maxRequestIDLen {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
