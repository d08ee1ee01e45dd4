package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SubmitFeedbackInput captures an interview scorecard from the API layer.
type SubmitFeedbackInput struct {
	TenantID       string
	CandidateID    string
	RequisitionID  string
	Interviewer    string
	Stage          string
	Rating         int
	Recommendation Recommendation
	Notes          string
}

func (in SubmitFeedbackInput) validate() error {
	switch {
	case strings.TrimSpace(in.Interviewer) == "":
		return fmt.Errorf("%w: interviewer is required", ErrInvalidFeedback)
	case strings.TrimSpace(in.Stage) == "":
		return fmt.Errorf("%w: stage is required", ErrInvalidFeedback)
	case in.Rating < 1 || in.Rating > 5:
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidFeedback)
	case !in.Recommendation.Valid():
		return fmt.Errorf("%w: unknown recommendation %q", ErrInvalidFeedback, in.Recommendation)
	}
	return nil
}

// SubmitFeedback stores a scorecard and counts it as candidate activity.
func (s *Service) SubmitFeedback(ctx context.Context, input SubmitFeedbackInput) (*InterviewFeedback, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	candidate, err := s.loadCandidate(ctx, input.TenantID, input.CandidateID)
	if err != nil {
		return nil, err
	}

	requisitionID := input.RequisitionID
	if requisitionID == "" {
		requisitionID = candidate.RequisitionID
	}

	feedback := InterviewFeedback{
		ID:             uuid.NewString(),
		TenantID:       input.TenantID,
		CandidateID:    candidate.ID,
		RequisitionID:  requisitionID,
		Interviewer:    strings.TrimSpace(input.Interviewer),
		Stage:          strings.TrimSpace(input.Stage),
		Rating:         input.Rating,
		Recommendation: input.Recommendation,
		Notes:          strings.TrimSpace(input.Notes),
		SubmittedAt:    s.Now(),
	}
	if err := s.repo.CreateFeedback(ctx, feedback); err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	return &feedback, nil
}

// ListFeedback returns a candidate's scorecards, newest first.
func (s *Service) ListFeedback(ctx context.Context, tenantID, candidateID string) ([]InterviewFeedback, error) {
	if _, err := s.loadCandidate(ctx, tenantID, candidateID); err != nil {
		return nil, err
	}
	return s.repo.ListFeedback(ctx, tenantID, candidateID)
}
