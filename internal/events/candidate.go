// Package events defines the payloads published through the outbox.
package events

import "time"

// Event types recorded in the outbox and carried in the event_type header.
const (
	TypeCandidateCreated       = "candidate.created"
	TypeCandidateStatusChanged = "candidate.status_changed"
	TypeFeedbackSubmitted      = "candidate.feedback_submitted"
)

// CandidateCreated is emitted when a candidate profile is accepted.
type CandidateCreated struct {
	CandidateID   string    `json:"candidate_id"`
	TenantID      string    `json:"tenant_id"`
	RequisitionID string    `json:"requisition_id,omitempty"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Source        string    `json:"source"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// CandidateStatusChanged tracks pipeline moves (applied, screening, ...).
type CandidateStatusChanged struct {
	CandidateID string    `json:"candidate_id"`
	TenantID    string    `json:"tenant_id"`
	FromStatus  string    `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	ChangedBy   string    `json:"changed_by"`
	Note        string    `json:"note,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// FeedbackSubmitted is emitted for every interview scorecard.
type FeedbackSubmitted struct {
	FeedbackID     string    `json:"feedback_id"`
	CandidateID    string    `json:"candidate_id"`
	TenantID       string    `json:"tenant_id"`
	RequisitionID  string    `json:"requisition_id,omitempty"`
	Interviewer    string    `json:"interviewer"`
	Stage          string    `json:"stage"`
	Rating         int       `json:"rating"`
	Recommendation string    `json:"recommendation"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
