package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/talent/internal/auth"
	"example.com/talent/internal/domain"
	"example.com/talent/internal/persistence"
	"example.com/talent/internal/recency"
)

func (h *Handler) createRequisition(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeRequisitionsWrite)
	if !ok {
		return
	}

	var req CreateRequisitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	requisition, err := h.service.CreateRequisition(r.Context(), domain.CreateRequisitionInput{
		TenantID:       claims.TenantID,
		Title:          req.Title,
		Department:     req.Department,
		Location:       req.Location,
		EmploymentType: req.EmploymentType,
		Openings:       req.Openings,
		HiringManager:  req.HiringManager,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequisitionView(*requisition))
}

func (h *Handler) getRequisition(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeRequisitionsRead, auth.ScopeRequisitionsWrite)
	if !ok {
		return
	}

	requisition, err := h.service.GetRequisition(r.Context(), claims.TenantID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequisitionView(*requisition))
}

func (h *Handler) listRequisitions(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeRequisitionsRead, auth.ScopeRequisitionsWrite)
	if !ok {
		return
	}

	query := r.URL.Query()
	var status domain.RequisitionStatus
	if raw := query.Get("status"); raw != "" {
		parsed, valid := domain.ParseRequisitionStatus(raw)
		if !valid {
			writeError(w, http.StatusBadRequest, "validation_failed", "unknown status "+raw)
			return
		}
		status = parsed
	}

	cursor, err := persistence.DecodeCursor(query.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	requisitions, next, err := h.service.ListRequisitions(r.Context(), claims.TenantID, status, cursor, parseLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]RequisitionView, 0, len(requisitions))
	for _, req := range requisitions {
		items = append(items, toRequisitionView(req))
	}
	writeJSON(w, http.StatusOK, ListRequisitionsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) changeRequisitionStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeRequisitionsWrite)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	status, valid := domain.ParseRequisitionStatus(req.Status)
	if !valid {
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown status "+req.Status)
		return
	}

	requisition, err := h.service.ChangeRequisitionStatus(r.Context(), claims.TenantID, r.PathValue("id"), status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequisitionView(*requisition))
}

func (h *Handler) pipeline(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeRequisitionsRead, auth.ScopeRequisitionsWrite)
	if !ok {
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	summary, err := h.service.PipelineSummary(r.Context(), claims.TenantID, r.PathValue("id"), asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPipelineView(*summary))
}

// CreateRequisitionRequest is the payload for POST /v1/requisitions.
type CreateRequisitionRequest struct {
	Title          string `json:"title"`
	Department     string `json:"department"`
	Location       string `json:"location"`
	EmploymentType string `json:"employment_type"`
	Openings       int    `json:"openings"`
	HiringManager  string `json:"hiring_manager"`
}

// Validate ensures request correctness.
func (r CreateRequisitionRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	if r.Openings < 0 {
		return errors.New("openings must be positive")
	}
	return nil
}

// RequisitionView is the JSON form of a job requisition.
type RequisitionView struct {
	RequisitionID  string    `json:"requisition_id"`
	TenantID       string    `json:"tenant_id"`
	Title          string    `json:"title"`
	Department     string    `json:"department,omitempty"`
	Location       string    `json:"location,omitempty"`
	EmploymentType string    `json:"employment_type,omitempty"`
	Openings       int       `json:"openings"`
	HiringManager  string    `json:"hiring_manager,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListRequisitionsResponse packages list results.
type ListRequisitionsResponse struct {
	Items      []RequisitionView `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// BucketCount is one recency bucket of a pipeline summary.
type BucketCount struct {
	Bucket recency.Bucket `json:"bucket"`
	Key    string         `json:"key"`
	Count  int            `json:"count"`
}

// PipelineView reports candidate counts for a requisition. ByRecency keeps
// the buckets ordered from most to least recent.
type PipelineView struct {
	RequisitionID string         `json:"requisition_id"`
	AsOf          time.Time      `json:"as_of"`
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	ByRecency     []BucketCount  `json:"by_recency"`
}

func toRequisitionView(req domain.JobRequisition) RequisitionView {
	return RequisitionView{
		RequisitionID:  req.ID,
		TenantID:       req.TenantID,
		Title:          req.Title,
		Department:     req.Department,
		Location:       req.Location,
		EmploymentType: req.EmploymentType,
		Openings:       req.Openings,
		HiringManager:  req.HiringManager,
		Status:         string(req.Status),
		CreatedAt:      req.CreatedAt,
		UpdatedAt:      req.UpdatedAt,
	}
}

func toPipelineView(summary domain.PipelineSummary) PipelineView {
	view := PipelineView{
		RequisitionID: summary.RequisitionID,
		AsOf:          summary.AsOf,
		Total:         summary.Total,
		ByStatus:      make(map[string]int, len(summary.ByStatus)),
		ByRecency:     make([]BucketCount, 0, len(recency.Buckets)),
	}
	for status, count := range summary.ByStatus {
		view.ByStatus[string(status)] = count
	}
	for _, bucket := range recency.Buckets {
		view.ByRecency = append(view.ByRecency, BucketCount{
			Bucket: bucket,
			Key:    bucket.Key(),
			Count:  summary.ByRecency[bucket],
		})
	}
	return view
}
