package api

import (
	"errors"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"example.com/talent/internal/auth"
	"example.com/talent/internal/domain"
	"example.com/talent/internal/persistence"
	"example.com/talent/internal/recency"
)

func (h *Handler) createCandidate(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCandidatesWrite)
	if !ok {
		return
	}

	var req CreateCandidateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	candidate, replay, err := h.service.CreateCandidate(r.Context(), domain.CreateCandidateInput{
		TenantID:       claims.TenantID,
		RequisitionID:  req.RequisitionID,
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		Headline:       req.Headline,
		Location:       req.Location,
		Skills:         req.Skills,
		Source:         req.Source,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, CreateCandidateResponse{
		CandidateID: candidate.ID,
		Status:      string(candidate.Status),
		Replay:      replay,
	})
}

func (h *Handler) getCandidate(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCandidatesRead, auth.ScopeCandidatesWrite)
	if !ok {
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	record, err := h.service.GetCandidate(r.Context(), claims.TenantID, r.PathValue("id"), asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCandidateView(*record))
}

func (h *Handler) listCandidates(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCandidatesRead, auth.ScopeCandidatesWrite)
	if !ok {
		return
	}

	query := r.URL.Query()
	input := domain.ListCandidatesInput{
		TenantID:      claims.TenantID,
		RequisitionID: strings.TrimSpace(query.Get("requisition_id")),
		Limit:         parseLimit(r),
	}

	if raw := query.Get("status"); raw != "" {
		status, valid := domain.ParseCandidateStatus(raw)
		if !valid {
			writeError(w, http.StatusBadRequest, "validation_failed", "unknown status "+raw)
			return
		}
		input.Status = status
	}
	if raw := query.Get("recency"); raw != "" {
		bucket, err := recency.ParseBucket(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		input.Recency = &bucket
	}

	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	input.AsOf = asOf

	cursor, err := persistence.DecodeCursor(query.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}
	input.Cursor = cursor

	records, next, err := h.service.ListCandidates(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]CandidateView, 0, len(records))
	for _, rec := range records {
		items = append(items, toCandidateView(rec))
	}
	writeJSON(w, http.StatusOK, ListCandidatesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) changeCandidateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCandidatesWrite)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	status, valid := domain.ParseCandidateStatus(req.Status)
	if !valid {
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown status "+req.Status)
		return
	}

	entry, err := h.service.ChangeCandidateStatus(r.Context(), domain.ChangeStatusInput{
		TenantID:    claims.TenantID,
		CandidateID: r.PathValue("id"),
		Status:      status,
		Note:        req.Note,
		ChangedBy:   claims.Subject,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusLogView(*entry))
}

func (h *Handler) listStatusLogs(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCandidatesRead, auth.ScopeCandidatesWrite)
	if !ok {
		return
	}

	entries, err := h.service.ListStatusLogs(r.Context(), claims.TenantID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]StatusLogView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toStatusLogView(entry))
	}
	writeJSON(w, http.StatusOK, map[string][]StatusLogView{"items": items})
}

func (h *Handler) submitFeedback(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCandidatesWrite)
	if !ok {
		return
	}

	var req SubmitFeedbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	interviewer := req.Interviewer
	if strings.TrimSpace(interviewer) == "" {
		interviewer = claims.Subject
	}

	feedback, err := h.service.SubmitFeedback(r.Context(), domain.SubmitFeedbackInput{
		TenantID:       claims.TenantID,
		CandidateID:    r.PathValue("id"),
		RequisitionID:  req.RequisitionID,
		Interviewer:    interviewer,
		Stage:          req.Stage,
		Rating:         req.Rating,
		Recommendation: domain.Recommendation(strings.ToLower(strings.TrimSpace(req.Recommendation))),
		Notes:          req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFeedbackView(*feedback))
}

func (h *Handler) listFeedback(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCandidatesRead, auth.ScopeCandidatesWrite)
	if !ok {
		return
	}

	entries, err := h.service.ListFeedback(r.Context(), claims.TenantID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]FeedbackView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toFeedbackView(entry))
	}
	writeJSON(w, http.StatusOK, map[string][]FeedbackView{"items": items})
}

func (h *Handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCandidatesWrite)
	if !ok {
		return
	}

	limit := h.service.AvatarMaxBytes()
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDomainError(w, domain.ErrAvatarTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}

	candidate, err := h.service.SetAvatar(r.Context(), claims.TenantID, r.PathValue("id"), r.Header.Get("Content-Type"), data)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvatarResponse{
		CandidateID: candidate.ID,
		AvatarURL:   candidate.AvatarURL,
	})
}

// CreateCandidateRequest is the payload for POST /v1/candidates.
type CreateCandidateRequest struct {
	RequisitionID string   `json:"requisition_id"`
	FullName      string   `json:"full_name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Headline      string   `json:"headline"`
	Location      string   `json:"location"`
	Skills        []string `json:"skills"`
	Source        string   `json:"source"`
}

// Validate ensures request correctness.
func (r CreateCandidateRequest) Validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return errors.New("full_name is required")
	}
	if email := strings.TrimSpace(r.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return errors.New("email is not a valid address")
		}
	}
	return nil
}

// CreateCandidateResponse describes the response body for create.
type CreateCandidateResponse struct {
	CandidateID string `json:"candidate_id"`
	Status      string `json:"status"`
	Replay      bool   `json:"idempotent_replay"`
}

// CandidateView exposes a candidate with its recency label.
type CandidateView struct {
	CandidateID    string         `json:"candidate_id"`
	TenantID       string         `json:"tenant_id"`
	RequisitionID  string         `json:"requisition_id,omitempty"`
	FullName       string         `json:"full_name"`
	Email          string         `json:"email,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Headline       string         `json:"headline,omitempty"`
	Location       string         `json:"location,omitempty"`
	Skills         []string       `json:"skills"`
	Source         string         `json:"source"`
	Status         string         `json:"status"`
	AvatarURL      string         `json:"avatar_url,omitempty"`
	LastActivityAt *time.Time     `json:"last_activity_at,omitempty"`
	Recency        recency.Bucket `json:"recency"`
	RecencyKey     string         `json:"recency_key"`
	AsOf           time.Time      `json:"as_of"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ListCandidatesResponse packages list results.
type ListCandidatesResponse struct {
	Items      []CandidateView `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// ChangeStatusRequest is the payload for POST /v1/candidates/{id}/status.
type ChangeStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// StatusLogView is one pipeline move.
type StatusLogView struct {
	LogID       string    `json:"log_id"`
	CandidateID string    `json:"candidate_id"`
	FromStatus  string    `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	Note        string    `json:"note,omitempty"`
	ChangedBy   string    `json:"changed_by"`
	ChangedAt   time.Time `json:"changed_at"`
}

// SubmitFeedbackRequest is the payload for POST /v1/candidates/{id}/feedback.
type SubmitFeedbackRequest struct {
	RequisitionID  string `json:"requisition_id"`
	Interviewer    string `json:"interviewer"`
	Stage          string `json:"stage"`
	Rating         int    `json:"rating"`
	Recommendation string `json:"recommendation"`
	Notes          string `json:"notes"`
}

// FeedbackView is a stored scorecard.
type FeedbackView struct {
	FeedbackID     string    `json:"feedback_id"`
	CandidateID    string    `json:"candidate_id"`
	RequisitionID  string    `json:"requisition_id,omitempty"`
	Interviewer    string    `json:"interviewer"`
	Stage          string    `json:"stage"`
	Rating         int       `json:"rating"`
	Recommendation string    `json:"recommendation"`
	Notes          string    `json:"notes,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// AvatarResponse reports the stored avatar location.
type AvatarResponse struct {
	CandidateID string `json:"candidate_id"`
	AvatarURL   string `json:"avatar_url"`
}

func toCandidateView(rec domain.CandidateRecord) CandidateView {
	skills := rec.Skills
	if skills == nil {
		skills = []string{}
	}
	return CandidateView{
		CandidateID:    rec.ID,
		TenantID:       rec.TenantID,
		RequisitionID:  rec.RequisitionID,
		FullName:       rec.FullName,
		Email:          rec.Email,
		Phone:          rec.Phone,
		Headline:       rec.Headline,
		Location:       rec.Location,
		Skills:         skills,
		Source:         rec.Source,
		Status:         string(rec.Status),
		AvatarURL:      rec.AvatarURL,
		LastActivityAt: rec.LastActivityAt,
		Recency:        rec.Recency,
		RecencyKey:     rec.Recency.Key(),
		AsOf:           rec.AsOf,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func toStatusLogView(entry domain.StatusLog) StatusLogView {
	return StatusLogView{
		LogID:       entry.ID,
		CandidateID: entry.CandidateID,
		FromStatus:  string(entry.FromStatus),
		ToStatus:    string(entry.ToStatus),
		Note:        entry.Note,
		ChangedBy:   entry.ChangedBy,
		ChangedAt:   entry.ChangedAt,
	}
}

func toFeedbackView(f domain.InterviewFeedback) FeedbackView {
	return FeedbackView{
		FeedbackID:     f.ID,
		CandidateID:    f.CandidateID,
		RequisitionID:  f.RequisitionID,
		Interviewer:    f.Interviewer,
		Stage:          f.Stage,
		Rating:         f.Rating,
		Recommendation: string(f.Recommendation),
		Notes:          f.Notes,
		SubmittedAt:    f.SubmittedAt,
	}
}
