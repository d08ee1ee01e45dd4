package domain

import (
	"strings"
	"time"

	"example.com/talent/internal/recency"
)

// CandidateStatus is a candidate's position in the hiring pipeline.
type CandidateStatus string

const (
	StatusApplied      CandidateStatus = "applied"
	StatusScreening    CandidateStatus = "screening"
	StatusInterviewing CandidateStatus = "interviewing"
	StatusOffered      CandidateStatus = "offered"
	StatusHired        CandidateStatus = "hired"
	StatusRejected     CandidateStatus = "rejected"
	StatusWithdrawn    CandidateStatus = "withdrawn"
)

// CandidateStatuses lists every pipeline status in funnel order.
var CandidateStatuses = []CandidateStatus{
	StatusApplied, StatusScreening, StatusInterviewing, StatusOffered,
	StatusHired, StatusRejected, StatusWithdrawn,
}

// Valid reports whether s is a known status.
func (s CandidateStatus) Valid() bool {
	for _, known := range CandidateStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s closes the candidate's pipeline.
func (s CandidateStatus) Terminal() bool {
	return s == StatusHired || s == StatusRejected || s == StatusWithdrawn
}

// CanTransition reports whether a candidate in s may move to next.
// Open candidates may move anywhere except back to applied; closed candidates
// can only be reopened into screening.
func (s CandidateStatus) CanTransition(next CandidateStatus) bool {
	if !next.Valid() || next == s || next == StatusApplied {
		return false
	}
	if s.Terminal() {
		return next == StatusScreening
	}
	return true
}

// ParseCandidateStatus normalises user input into a CandidateStatus.
func ParseCandidateStatus(value string) (CandidateStatus, bool) {
	status := CandidateStatus(strings.ToLower(strings.TrimSpace(value)))
	return status, status.Valid()
}

// Candidate is the canonical candidate profile stored in PostgreSQL.
type Candidate struct {
	ID             string
	TenantID       string
	RequisitionID  string
	FullName       string
	Email          string
	Phone          string
	Headline       string
	Location       string
	Skills         []string
	Source         string
	Status         CandidateStatus
	AvatarKey      string
	AvatarURL      string
	LastActivityAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CandidateRecord is a candidate labelled with its recency relative to AsOf.
type CandidateRecord struct {
	Candidate
	Recency recency.Bucket
	AsOf    time.Time
}

// CandidateQuery narrows candidate listings. Zero fields are ignored.
type CandidateQuery struct {
	RequisitionID string
	Status        CandidateStatus
	Recency       *recency.Window
}

// StatusLog records one pipeline move.
type StatusLog struct {
	ID          string
	TenantID    string
	CandidateID string
	FromStatus  CandidateStatus
	ToStatus    CandidateStatus
	Note        string
	ChangedBy   string
	ChangedAt   time.Time
}

// Recommendation is an interviewer's hiring verdict.
type Recommendation string

const (
	RecommendStrongYes Recommendation = "strong_yes"
	RecommendYes       Recommendation = "yes"
	RecommendNo        Recommendation = "no"
	RecommendStrongNo  Recommendation = "strong_no"
)

// Valid reports whether r is a known recommendation.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendStrongYes, RecommendYes, RecommendNo, RecommendStrongNo:
		return true
	}
	return false
}

// InterviewFeedback is a submitted interview scorecard.
type InterviewFeedback struct {
	ID             string
	TenantID       string
	CandidateID    string
	RequisitionID  string
	Interviewer    string
	Stage          string
	Rating         int
	Recommendation Recommendation
	Notes          string
	SubmittedAt    time.Time
}

// Cursor models the keyset pagination token for candidate and requisition listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}
