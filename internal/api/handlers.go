// Package api exposes HTTP handlers for the talent service.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/talent/internal/auth"
	"example.com/talent/internal/domain"
	"example.com/talent/internal/recency"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/candidates", h.createCandidate)
	mux.HandleFunc("GET /v1/candidates", h.listCandidates)
	mux.HandleFunc("GET /v1/candidates/{id}", h.getCandidate)
	mux.HandleFunc("POST /v1/candidates/{id}/status", h.changeCandidateStatus)
	mux.HandleFunc("GET /v1/candidates/{id}/status-logs", h.listStatusLogs)
	mux.HandleFunc("POST /v1/candidates/{id}/feedback", h.submitFeedback)
	mux.HandleFunc("GET /v1/candidates/{id}/feedback", h.listFeedback)
	mux.HandleFunc("PUT /v1/candidates/{id}/avatar", h.uploadAvatar)

	mux.HandleFunc("POST /v1/requisitions", h.createRequisition)
	mux.HandleFunc("GET /v1/requisitions", h.listRequisitions)
	mux.HandleFunc("GET /v1/requisitions/{id}", h.getRequisition)
	mux.HandleFunc("POST /v1/requisitions/{id}/status", h.changeRequisitionStatus)
	mux.HandleFunc("GET /v1/requisitions/{id}/pipeline", h.pipeline)

	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize returns the caller's claims when any of scopes is granted.
func authorize(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasAnyScope(scopes...) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
		return nil, false
	}
	return claims, true
}

// parseAsOf reads the optional as_of reference instant. A zero result means
// the service clock decides.
func parseAsOf(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if raw == "" {
		return time.Time{}, nil
	}
	at, ok := recency.Parse(raw)
	if !ok {
		return time.Time{}, errors.New("as_of must be an ISO-8601 timestamp")
	}
	return at, nil
}

func parseLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 0
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDomainError maps service errors onto HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCandidateNotFound), errors.Is(err, domain.ErrRequisitionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrInvalidFeedback), errors.Is(err, domain.ErrEmptyAvatar):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrStatusUnchanged), errors.Is(err, domain.ErrStatusConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrUnsupportedAvatarType):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", err.Error())
	case errors.Is(err, domain.ErrAvatarTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
	case errors.Is(err, domain.ErrAvatarStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
	default:
		log.Printf("api: unhandled error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
