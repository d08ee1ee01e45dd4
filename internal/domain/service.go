// Package domain defines the business logic for the talent service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/talent/internal/observability"
	"example.com/talent/internal/recency"
)

var (
	// ErrCandidateNotFound is returned when a candidate cannot be located.
	ErrCandidateNotFound = errors.New("candidate not found")
	// ErrRequisitionNotFound is returned when a requisition cannot be located.
	ErrRequisitionNotFound = errors.New("requisition not found")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTransition indicates a pipeline move that is not allowed.
	ErrInvalidTransition = errors.New("status transition not allowed")
	// ErrStatusUnchanged indicates the requested status equals the current one.
	ErrStatusUnchanged = errors.New("status unchanged")
	// ErrStatusConflict is returned when the stored status moved underneath a change.
	ErrStatusConflict = errors.New("candidate status changed concurrently")
	// ErrInvalidFeedback indicates a malformed interview scorecard.
	ErrInvalidFeedback = errors.New("invalid feedback")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CandidateRepository captures candidate persistence operations.
type CandidateRepository interface {
	FindCandidateByIdempotency(ctx context.Context, tenantID, idempotencyKey string) (*Candidate, error)
	CreateCandidate(ctx context.Context, candidate Candidate, idempotencyKey string) error
	GetCandidate(ctx context.Context, tenantID, candidateID string) (*Candidate, error)
	ListCandidates(ctx context.Context, tenantID string, query CandidateQuery, cursor *Cursor, limit int) ([]Candidate, *Cursor, error)
	ApplyStatusChange(ctx context.Context, change StatusLog) error
	ListStatusLogs(ctx context.Context, tenantID, candidateID string) ([]StatusLog, error)
	CreateFeedback(ctx context.Context, feedback InterviewFeedback) error
	ListFeedback(ctx context.Context, tenantID, candidateID string) ([]InterviewFeedback, error)
	UpdateAvatar(ctx context.Context, tenantID, candidateID, key, url string, at time.Time) error
	BackfillLastActivity(ctx context.Context, tenantID string) (int64, error)
}

// RequisitionRepository captures requisition persistence operations.
type RequisitionRepository interface {
	CreateRequisition(ctx context.Context, requisition JobRequisition) error
	GetRequisition(ctx context.Context, tenantID, requisitionID string) (*JobRequisition, error)
	ListRequisitions(ctx context.Context, tenantID string, status RequisitionStatus, cursor *Cursor, limit int) ([]JobRequisition, *Cursor, error)
	UpdateRequisitionStatus(ctx context.Context, tenantID, requisitionID string, status RequisitionStatus, at time.Time) error
	PipelineCounts(ctx context.Context, tenantID, requisitionID string, asOf time.Time) (map[CandidateStatus]int, map[recency.Bucket]int, error)
}

// Repository is the full persistence surface used by Service.
type Repository interface {
	CandidateRepository
	RequisitionRepository
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithAvatarStore enables avatar uploads up to maxBytes.
func WithAvatarStore(store AvatarStore, maxBytes int64) Option {
	return func(s *Service) {
		s.avatars = store
		if maxBytes > 0 {
			s.avatarMaxBytes = maxBytes
		}
	}
}

// Service orchestrates candidate and requisition workflows.
type Service struct {
	repo           Repository
	clock          func() time.Time
	avatars        AvatarStore
	avatarMaxBytes int64
}

// NewService constructs a Service. clock supplies the reference instant when a
// caller does not pass one; it is the only source of wall-clock time.
func NewService(repo Repository, clock func() time.Time, opts ...Option) *Service {
	s := &Service{repo: repo, clock: clock, avatarMaxBytes: defaultAvatarMaxBytes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now reports the service clock in UTC. Callers that need a default
// reference instant take it from here.
func (s *Service) Now() time.Time {
	return s.clock().UTC()
}

func (s *Service) referenceTime(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return s.Now()
	}
	return asOf
}

func (s *Service) record(c Candidate, asOf time.Time) CandidateRecord {
	bucket := recency.Classify(c.LastActivityAt, asOf)
	observability.RecordRecencyClassified(bucket)
	return CandidateRecord{Candidate: c, Recency: bucket, AsOf: asOf}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// CreateCandidateInput captures the payload from the API layer.
type CreateCandidateInput struct {
	TenantID       string
	RequisitionID  string
	FullName       string
	Email          string
	Phone          string
	Headline       string
	Location       string
	Skills         []string
	Source         string
	IdempotencyKey string
}

// CreateCandidate handles idempotent create semantics and outbox recording.
// The boolean result reports an idempotent replay.
func (s *Service) CreateCandidate(ctx context.Context, input CreateCandidateInput) (*Candidate, bool, error) {
	if existing, err := s.repo.FindCandidateByIdempotency(ctx, input.TenantID, input.IdempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	if input.RequisitionID != "" {
		if _, err := s.GetRequisition(ctx, input.TenantID, input.RequisitionID); err != nil {
			return nil, false, err
		}
	}

	now := s.Now()
	candidate := Candidate{
		ID:             uuid.NewString(),
		TenantID:       input.TenantID,
		RequisitionID:  input.RequisitionID,
		FullName:       strings.TrimSpace(input.FullName),
		Email:          strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:          strings.TrimSpace(input.Phone),
		Headline:       strings.TrimSpace(input.Headline),
		Location:       strings.TrimSpace(input.Location),
		Skills:         cleanSkills(input.Skills),
		Source:         strings.TrimSpace(input.Source),
		Status:         StatusApplied,
		LastActivityAt: &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateCandidate(ctx, candidate, input.IdempotencyKey); err != nil {
		return nil, false, fmt.Errorf("create candidate: %w", err)
	}
	return &candidate, false, nil
}

func cleanSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}
	return out
}

// GetCandidate fetches a candidate and labels it relative to asOf (zero means now).
func (s *Service) GetCandidate(ctx context.Context, tenantID, candidateID string, asOf time.Time) (*CandidateRecord, error) {
	candidate, err := s.loadCandidate(ctx, tenantID, candidateID)
	if err != nil {
		return nil, err
	}
	record := s.record(*candidate, s.referenceTime(asOf))
	return &record, nil
}

func (s *Service) loadCandidate(ctx context.Context, tenantID, candidateID string) (*Candidate, error) {
	candidate, err := s.repo.GetCandidate(ctx, tenantID, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, ErrCandidateNotFound
	}
	return candidate, nil
}

// ListCandidatesInput narrows a candidate listing.
type ListCandidatesInput struct {
	TenantID      string
	RequisitionID string
	Status        CandidateStatus
	Recency       *recency.Bucket
	Cursor        *Cursor
	Limit         int
	AsOf          time.Time
}

// ListCandidates fetches candidates with cursor pagination, newest first.
func (s *Service) ListCandidates(ctx context.Context, input ListCandidatesInput) ([]CandidateRecord, *Cursor, error) {
	if input.Status != "" && !input.Status.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidStatus, input.Status)
	}

	asOf := s.referenceTime(input.AsOf)
	query := CandidateQuery{RequisitionID: input.RequisitionID, Status: input.Status}
	if input.Recency != nil {
		window := recency.WindowFor(*input.Recency, asOf)
		query.Recency = &window
	}

	candidates, next, err := s.repo.ListCandidates(ctx, input.TenantID, query, input.Cursor, normalizeLimit(input.Limit))
	if err != nil {
		return nil, nil, err
	}

	records := make([]CandidateRecord, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, s.record(c, asOf))
	}
	return records, next, nil
}

// ChangeStatusInput captures a pipeline move.
type ChangeStatusInput struct {
	TenantID    string
	CandidateID string
	Status      CandidateStatus
	Note        string
	ChangedBy   string
}

// ChangeCandidateStatus validates and records a pipeline move. The status log,
// the candidate row and the outbox event are written atomically.
func (s *Service) ChangeCandidateStatus(ctx context.Context, input ChangeStatusInput) (*StatusLog, error) {
	if !input.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, input.Status)
	}

	candidate, err := s.loadCandidate(ctx, input.TenantID, input.CandidateID)
	if err != nil {
		return nil, err
	}
	if candidate.Status == input.Status {
		return nil, ErrStatusUnchanged
	}
	if !candidate.Status.CanTransition(input.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, candidate.Status, input.Status)
	}

	change := StatusLog{
		ID:          uuid.NewString(),
		TenantID:    input.TenantID,
		CandidateID: candidate.ID,
		FromStatus:  candidate.Status,
		ToStatus:    input.Status,
		Note:        strings.TrimSpace(input.Note),
		ChangedBy:   input.ChangedBy,
		ChangedAt:   s.Now(),
	}
	if err := s.repo.ApplyStatusChange(ctx, change); err != nil {
		return nil, err
	}
	return &change, nil
}

// ListStatusLogs returns a candidate's pipeline history, newest first.
func (s *Service) ListStatusLogs(ctx context.Context, tenantID, candidateID string) ([]StatusLog, error) {
	if _, err := s.loadCandidate(ctx, tenantID, candidateID); err != nil {
		return nil, err
	}
	return s.repo.ListStatusLogs(ctx, tenantID, candidateID)
}

// BackfillLastActivity recomputes last-activity instants for one tenant from
// the candidate's own history. It returns the number of rows updated.
func (s *Service) BackfillLastActivity(ctx context.Context, tenantID string) (int64, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, errors.New("tenant id is required")
	}
	return s.repo.BackfillLastActivity(ctx, tenantID)
}
