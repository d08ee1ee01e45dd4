// Package memory provides an in-process repository for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/talent/internal/domain"
	"example.com/talent/internal/recency"
)

// InMemoryRepository implements domain.Repository with maps guarded by a mutex.
type InMemoryRepository struct {
	mu           sync.RWMutex
	candidates   map[string]domain.Candidate
	idempotency  map[string]string
	statusLogs   map[string][]domain.StatusLog
	feedback     map[string][]domain.InterviewFeedback
	requisitions map[string]domain.JobRequisition
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		candidates:   make(map[string]domain.Candidate),
		idempotency:  make(map[string]string),
		statusLogs:   make(map[string][]domain.StatusLog),
		feedback:     make(map[string][]domain.InterviewFeedback),
		requisitions: make(map[string]domain.JobRequisition),
	}
}

func idempotencyIndex(tenantID, key string) string {
	return tenantID + "\x00" + key
}

// FindCandidateByIdempotency implements domain.CandidateRepository.
func (r *InMemoryRepository) FindCandidateByIdempotency(ctx context.Context, tenantID, idempotencyKey string) (*domain.Candidate, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idempotency[idempotencyIndex(tenantID, idempotencyKey)]
	if !ok {
		return nil, nil
	}
	candidate := cloneCandidate(r.candidates[id])
	return &candidate, nil
}

// CreateCandidate implements domain.CandidateRepository.
func (r *InMemoryRepository) CreateCandidate(ctx context.Context, candidate domain.Candidate, idempotencyKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.candidates[candidate.ID] = cloneCandidate(candidate)
	if idempotencyKey != "" {
		r.idempotency[idempotencyIndex(candidate.TenantID, idempotencyKey)] = candidate.ID
	}
	return nil
}

// GetCandidate returns nil when the candidate is unknown to the tenant.
func (r *InMemoryRepository) GetCandidate(ctx context.Context, tenantID, candidateID string) (*domain.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidate, ok := r.candidates[candidateID]
	if !ok || candidate.TenantID != tenantID {
		return nil, nil
	}
	out := cloneCandidate(candidate)
	return &out, nil
}

// ListCandidates implements domain.CandidateRepository.
func (r *InMemoryRepository) ListCandidates(ctx context.Context, tenantID string, query domain.CandidateQuery, cursor *domain.Cursor, limit int) ([]domain.Candidate, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Candidate, 0)
	for _, c := range r.candidates {
		if c.TenantID != tenantID {
			continue
		}
		if query.RequisitionID != "" && c.RequisitionID != query.RequisitionID {
			continue
		}
		if query.Status != "" && c.Status != query.Status {
			continue
		}
		if query.Recency != nil {
			var at time.Time
			if c.LastActivityAt != nil {
				at = *c.LastActivityAt
			}
			if !query.Recency.Contains(at) {
				continue
			}
		}
		if cursor != nil && !before(c.CreatedAt, c.ID, *cursor) {
			continue
		}
		matched = append(matched, cloneCandidate(c))
	}

	sort.Slice(matched, func(i, j int) bool {
		return before(matched[j].CreatedAt, matched[j].ID, domain.Cursor{CreatedAt: matched[i].CreatedAt, ID: matched[i].ID})
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	var next *domain.Cursor
	if len(matched) == limit && limit > 0 {
		last := matched[len(matched)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return matched, next, nil
}

// before reports whether (at, id) sorts strictly after the cursor in descending order.
func before(at time.Time, id string, cursor domain.Cursor) bool {
	if at.Equal(cursor.CreatedAt) {
		return id < cursor.ID
	}
	return at.Before(cursor.CreatedAt)
}

// ApplyStatusChange implements domain.CandidateRepository.
func (r *InMemoryRepository) ApplyStatusChange(ctx context.Context, change domain.StatusLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate, ok := r.candidates[change.CandidateID]
	if !ok || candidate.TenantID != change.TenantID {
		return domain.ErrCandidateNotFound
	}
	if candidate.Status != change.FromStatus {
		return domain.ErrStatusConflict
	}

	at := change.ChangedAt
	candidate.Status = change.ToStatus
	candidate.LastActivityAt = &at
	candidate.UpdatedAt = at
	r.candidates[candidate.ID] = candidate
	r.statusLogs[candidate.ID] = append([]domain.StatusLog{change}, r.statusLogs[candidate.ID]...)
	return nil
}

// ListStatusLogs implements domain.CandidateRepository.
func (r *InMemoryRepository) ListStatusLogs(ctx context.Context, tenantID, candidateID string) ([]domain.StatusLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.StatusLog, 0, len(r.statusLogs[candidateID]))
	for _, entry := range r.statusLogs[candidateID] {
		if entry.TenantID == tenantID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// CreateFeedback implements domain.CandidateRepository.
func (r *InMemoryRepository) CreateFeedback(ctx context.Context, feedback domain.InterviewFeedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate, ok := r.candidates[feedback.CandidateID]
	if !ok || candidate.TenantID != feedback.TenantID {
		return domain.ErrCandidateNotFound
	}
	at := feedback.SubmittedAt
	if candidate.LastActivityAt == nil || at.After(*candidate.LastActivityAt) {
		candidate.LastActivityAt = &at
	}
	candidate.UpdatedAt = at
	r.candidates[candidate.ID] = candidate
	r.feedback[candidate.ID] = append([]domain.InterviewFeedback{feedback}, r.feedback[candidate.ID]...)
	return nil
}

// ListFeedback implements domain.CandidateRepository.
func (r *InMemoryRepository) ListFeedback(ctx context.Context, tenantID, candidateID string) ([]domain.InterviewFeedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.InterviewFeedback, 0, len(r.feedback[candidateID]))
	for _, entry := range r.feedback[candidateID] {
		if entry.TenantID == tenantID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// UpdateAvatar implements domain.CandidateRepository.
func (r *InMemoryRepository) UpdateAvatar(ctx context.Context, tenantID, candidateID, key, url string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate, ok := r.candidates[candidateID]
	if !ok || candidate.TenantID != tenantID {
		return domain.ErrCandidateNotFound
	}
	candidate.AvatarKey = key
	candidate.AvatarURL = url
	candidate.UpdatedAt = at
	r.candidates[candidateID] = candidate
	return nil
}

// BackfillLastActivity implements domain.CandidateRepository.
func (r *InMemoryRepository) BackfillLastActivity(ctx context.Context, tenantID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated int64
	for id, candidate := range r.candidates {
		if candidate.TenantID != tenantID {
			continue
		}
		latest := candidate.CreatedAt
		for _, entry := range r.statusLogs[id] {
			if entry.ChangedAt.After(latest) {
				latest = entry.ChangedAt
			}
		}
		for _, entry := range r.feedback[id] {
			if entry.SubmittedAt.After(latest) {
				latest = entry.SubmittedAt
			}
		}
		if candidate.LastActivityAt != nil && !candidate.LastActivityAt.Before(latest) {
			continue
		}
		candidate.LastActivityAt = &latest
		r.candidates[id] = candidate
		updated++
	}
	return updated, nil
}

// CreateRequisition implements domain.RequisitionRepository.
func (r *InMemoryRepository) CreateRequisition(ctx context.Context, requisition domain.JobRequisition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requisitions[requisition.ID] = requisition
	return nil
}

// GetRequisition returns nil when the requisition is unknown to the tenant.
func (r *InMemoryRepository) GetRequisition(ctx context.Context, tenantID, requisitionID string) (*domain.JobRequisition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requisition, ok := r.requisitions[requisitionID]
	if !ok || requisition.TenantID != tenantID {
		return nil, nil
	}
	return &requisition, nil
}

// ListRequisitions implements domain.RequisitionRepository.
func (r *InMemoryRepository) ListRequisitions(ctx context.Context, tenantID string, status domain.RequisitionStatus, cursor *domain.Cursor, limit int) ([]domain.JobRequisition, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.JobRequisition, 0)
	for _, req := range r.requisitions {
		if req.TenantID != tenantID || (status != "" && req.Status != status) {
			continue
		}
		if cursor != nil && !before(req.CreatedAt, req.ID, *cursor) {
			continue
		}
		matched = append(matched, req)
	}
	sort.Slice(matched, func(i, j int) bool {
		return before(matched[j].CreatedAt, matched[j].ID, domain.Cursor{CreatedAt: matched[i].CreatedAt, ID: matched[i].ID})
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	var next *domain.Cursor
	if len(matched) == limit && limit > 0 {
		last := matched[len(matched)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return matched, next, nil
}

// UpdateRequisitionStatus implements domain.RequisitionRepository.
func (r *InMemoryRepository) UpdateRequisitionStatus(ctx context.Context, tenantID, requisitionID string, status domain.RequisitionStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requisitions[requisitionID]
	if !ok || req.TenantID != tenantID {
		return domain.ErrRequisitionNotFound
	}
	req.Status = status
	req.UpdatedAt = at
	r.requisitions[requisitionID] = req
	return nil
}

// PipelineCounts implements domain.RequisitionRepository.
func (r *InMemoryRepository) PipelineCounts(ctx context.Context, tenantID, requisitionID string, asOf time.Time) (map[domain.CandidateStatus]int, map[recency.Bucket]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byStatus := make(map[domain.CandidateStatus]int)
	byRecency := make(map[recency.Bucket]int)
	for _, c := range r.candidates {
		if c.TenantID != tenantID || c.RequisitionID != requisitionID {
			continue
		}
		byStatus[c.Status]++
		byRecency[recency.Classify(c.LastActivityAt, asOf)]++
	}
	return byStatus, byRecency, nil
}

func cloneCandidate(c domain.Candidate) domain.Candidate {
	if c.Skills != nil {
		c.Skills = append([]string(nil), c.Skills...)
	}
	if c.LastActivityAt != nil {
		at := *c.LastActivityAt
		c.LastActivityAt = &at
	}
	return c
}
