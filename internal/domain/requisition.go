package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/talent/internal/recency"
)

// RequisitionStatus is the lifecycle state of a job requisition.
type RequisitionStatus string

const (
	RequisitionOpen   RequisitionStatus = "open"
	RequisitionOnHold RequisitionStatus = "on_hold"
	RequisitionClosed RequisitionStatus = "closed"
	RequisitionFilled RequisitionStatus = "filled"
)

// Valid reports whether s is a known requisition status.
func (s RequisitionStatus) Valid() bool {
	switch s {
	case RequisitionOpen, RequisitionOnHold, RequisitionClosed, RequisitionFilled:
		return true
	}
	return false
}

// ParseRequisitionStatus normalises user input into a RequisitionStatus.
func ParseRequisitionStatus(value string) (RequisitionStatus, bool) {
	status := RequisitionStatus(strings.ToLower(strings.TrimSpace(value)))
	return status, status.Valid()
}

// JobRequisition is an approved opening that candidates are hired against.
type JobRequisition struct {
	ID             string
	TenantID       string
	Title          string
	Department     string
	Location       string
	EmploymentType string
	Openings       int
	HiringManager  string
	Status         RequisitionStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PipelineSummary aggregates the candidates attached to one requisition.
type PipelineSummary struct {
	RequisitionID string
	AsOf          time.Time
	Total         int
	ByStatus      map[CandidateStatus]int
	ByRecency     map[recency.Bucket]int
}

// CreateRequisitionInput captures the payload from the API layer.
type CreateRequisitionInput struct {
	TenantID       string
	Title          string
	Department     string
	Location       string
	EmploymentType string
	Openings       int
	HiringManager  string
}

// CreateRequisition opens a new requisition.
func (s *Service) CreateRequisition(ctx context.Context, input CreateRequisitionInput) (*JobRequisition, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, errors.New("title is required")
	}
	openings := input.Openings
	if openings <= 0 {
		openings = 1
	}

	now := s.Now()
	requisition := JobRequisition{
		ID:             uuid.NewString(),
		TenantID:       input.TenantID,
		Title:          strings.TrimSpace(input.Title),
		Department:     strings.TrimSpace(input.Department),
		Location:       strings.TrimSpace(input.Location),
		EmploymentType: strings.TrimSpace(input.EmploymentType),
		Openings:       openings,
		HiringManager:  strings.TrimSpace(input.HiringManager),
		Status:         RequisitionOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateRequisition(ctx, requisition); err != nil {
		return nil, fmt.Errorf("create requisition: %w", err)
	}
	return &requisition, nil
}

// GetRequisition fetches by ID.
func (s *Service) GetRequisition(ctx context.Context, tenantID, requisitionID string) (*JobRequisition, error) {
	requisition, err := s.repo.GetRequisition(ctx, tenantID, requisitionID)
	if err != nil {
		return nil, err
	}
	if requisition == nil {
		return nil, ErrRequisitionNotFound
	}
	return requisition, nil
}

// ListRequisitions fetches requisitions with cursor pagination, newest first.
func (s *Service) ListRequisitions(ctx context.Context, tenantID string, status RequisitionStatus, cursor *Cursor, limit int) ([]JobRequisition, *Cursor, error) {
	if status != "" && !status.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.ListRequisitions(ctx, tenantID, status, cursor, normalizeLimit(limit))
}

// ChangeRequisitionStatus moves a requisition to a new lifecycle state.
func (s *Service) ChangeRequisitionStatus(ctx context.Context, tenantID, requisitionID string, status RequisitionStatus) (*JobRequisition, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	requisition, err := s.GetRequisition(ctx, tenantID, requisitionID)
	if err != nil {
		return nil, err
	}
	if requisition.Status == status {
		return nil, ErrStatusUnchanged
	}

	now := s.Now()
	if err := s.repo.UpdateRequisitionStatus(ctx, tenantID, requisitionID, status, now); err != nil {
		return nil, err
	}
	requisition.Status = status
	requisition.UpdatedAt = now
	return requisition, nil
}

// PipelineSummary counts a requisition's candidates per status and per
// recency bucket relative to asOf (zero means now).
func (s *Service) PipelineSummary(ctx context.Context, tenantID, requisitionID string, asOf time.Time) (*PipelineSummary, error) {
	if _, err := s.GetRequisition(ctx, tenantID, requisitionID); err != nil {
		return nil, err
	}

	asOf = s.referenceTime(asOf)
	byStatus, byRecency, err := s.repo.PipelineCounts(ctx, tenantID, requisitionID, asOf)
	if err != nil {
		return nil, err
	}

	summary := &PipelineSummary{
		RequisitionID: requisitionID,
		AsOf:          asOf,
		ByStatus:      make(map[CandidateStatus]int, len(CandidateStatuses)),
		ByRecency:     make(map[recency.Bucket]int, len(recency.Buckets)),
	}
	for _, status := range CandidateStatuses {
		summary.ByStatus[status] = byStatus[status]
		summary.Total += byStatus[status]
	}
	for _, bucket := range recency.Buckets {
		summary.ByRecency[bucket] = byRecency[bucket]
	}
	return summary, nil
}
