package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"example.com/talent/internal/domain"
	"example.com/talent/internal/events"
	"example.com/talent/internal/observability"
)

const candidateColumns = `candidate_id::text, tenant_id, COALESCE(requisition_id::text, ''), full_name, COALESCE(email, ''), COALESCE(phone, ''),
        COALESCE(headline, ''), COALESCE(location, ''), skills, COALESCE(source, ''), status, COALESCE(avatar_key, ''), COALESCE(avatar_url, ''),
        last_activity_at, created_at, updated_at`

func scanCandidate(row pgx.Row) (domain.Candidate, error) {
	var (
		c      domain.Candidate
		status string
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.RequisitionID, &c.FullName, &c.Email, &c.Phone,
		&c.Headline, &c.Location, &c.Skills, &c.Source, &status, &c.AvatarKey, &c.AvatarURL,
		&c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt)
	c.Status = domain.CandidateStatus(status)
	return c, err
}

// validID reports whether id can be compared against a uuid column. Malformed
// identifiers are treated as unknown rather than surfaced as SQL errors.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// FindCandidateByIdempotency checks if a candidate already exists for the supplied idempotency key.
func (r *Repository) FindCandidateByIdempotency(ctx context.Context, tenantID, idempotencyKey string) (*domain.Candidate, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE tenant_id=$1 AND idempotency_key=$2`

	var found *domain.Candidate
	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		c, err := scanCandidate(tx.QueryRow(ctx, query, tenantID, idempotencyKey))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &c
		return nil
	})
	return found, err
}

// CreateCandidate persists the candidate and records its outbox event inside a single transaction.
func (r *Repository) CreateCandidate(ctx context.Context, c domain.Candidate, idempotencyKey string) error {
	const insertCandidate = `INSERT INTO candidates (candidate_id, tenant_id, requisition_id, full_name, email, phone, headline, location, skills, source, status, idempotency_key, last_activity_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}

	err := r.inTenantTx(ctx, c.TenantID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertCandidate,
			c.ID,
			c.TenantID,
			nullIfEmpty(c.RequisitionID),
			c.FullName,
			nullIfEmpty(c.Email),
			nullIfEmpty(c.Phone),
			nullIfEmpty(c.Headline),
			nullIfEmpty(c.Location),
			skills,
			nullIfEmpty(c.Source),
			string(c.Status),
			nullIfEmpty(idempotencyKey),
			c.LastActivityAt,
			c.CreatedAt,
			c.UpdatedAt,
		); err != nil {
			return err
		}

		return r.insertOutbox(ctx, tx, outboxEvent{
			TenantID:    c.TenantID,
			AggregateID: c.ID,
			EventType:   events.TypeCandidateCreated,
			DedupeKey:   fmt.Sprintf("%s:%s", c.ID, events.TypeCandidateCreated),
			Payload: events.CandidateCreated{
				CandidateID:   c.ID,
				TenantID:      c.TenantID,
				RequisitionID: c.RequisitionID,
				FullName:      c.FullName,
				Email:         c.Email,
				Source:        c.Source,
				Status:        string(c.Status),
				CreatedAt:     c.CreatedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordCandidatePersisted(c.UpdatedAt)
	return nil
}

// GetCandidate retrieves a candidate by ID. It returns nil when the candidate is not visible to the tenant.
func (r *Repository) GetCandidate(ctx context.Context, tenantID, candidateID string) (*domain.Candidate, error) {
	if !validID(candidateID) {
		return nil, nil
	}
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE tenant_id=$1 AND candidate_id=$2`

	var found *domain.Candidate
	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		c, err := scanCandidate(tx.QueryRow(ctx, query, tenantID, candidateID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &c
		return nil
	})
	return found, err
}

// ListCandidates returns candidates ordered newest first.
func (r *Repository) ListCandidates(ctx context.Context, tenantID string, q domain.CandidateQuery, cursor *domain.Cursor, limit int) ([]domain.Candidate, *domain.Cursor, error) {
	args := []interface{}{tenantID, limit}
	conditions := []string{"tenant_id=$1"}

	if q.RequisitionID != "" {
		if !validID(q.RequisitionID) {
			return []domain.Candidate{}, nil, nil
		}
		args = append(args, q.RequisitionID)
		conditions = append(conditions, fmt.Sprintf("requisition_id=$%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		conditions = append(conditions, fmt.Sprintf("status=$%d", len(args)))
	}
	if q.Recency != nil {
		var cond string
		cond, args = windowCondition("last_activity_at", *q.Recency, args)
		conditions = append(conditions, cond)
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		conditions = append(conditions, fmt.Sprintf("(created_at, candidate_id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC, candidate_id DESC LIMIT $2`

	results := make([]domain.Candidate, 0, limit)
	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCandidate(rows)
			if err != nil {
				return err
			}
			results = append(results, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// ApplyStatusChange moves the candidate only if it is still in change.FromStatus,
// then writes the status log and the outbox event in the same transaction.
func (r *Repository) ApplyStatusChange(ctx context.Context, change domain.StatusLog) error {
	if !validID(change.CandidateID) {
		return domain.ErrCandidateNotFound
	}

	err := r.inTenantTx(ctx, change.TenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE candidates SET status=$3, last_activity_at=$4, updated_at=$4
             WHERE tenant_id=$1 AND candidate_id=$2 AND status=$5`,
			change.TenantID, change.CandidateID, string(change.ToStatus), change.ChangedAt, string(change.FromStatus),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM candidates WHERE tenant_id=$1 AND candidate_id=$2)`,
				change.TenantID, change.CandidateID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrCandidateNotFound
			}
			return domain.ErrStatusConflict
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO candidate_status_logs (log_id, tenant_id, candidate_id, from_status, to_status, note, changed_by, changed_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			change.ID, change.TenantID, change.CandidateID, string(change.FromStatus), string(change.ToStatus),
			nullIfEmpty(change.Note), nullIfEmpty(change.ChangedBy), change.ChangedAt,
		); err != nil {
			return err
		}

		return r.insertOutbox(ctx, tx, outboxEvent{
			TenantID:    change.TenantID,
			AggregateID: change.CandidateID,
			EventType:   events.TypeCandidateStatusChanged,
			DedupeKey:   fmt.Sprintf("%s:%s", change.ID, events.TypeCandidateStatusChanged),
			Payload: events.CandidateStatusChanged{
				CandidateID: change.CandidateID,
				TenantID:    change.TenantID,
				FromStatus:  string(change.FromStatus),
				ToStatus:    string(change.ToStatus),
				ChangedBy:   change.ChangedBy,
				Note:        change.Note,
				OccurredAt:  change.ChangedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordStatusChange(string(change.ToStatus))
	observability.RecordCandidatePersisted(change.ChangedAt)
	return nil
}

// ListStatusLogs returns a candidate's pipeline history, newest first.
func (r *Repository) ListStatusLogs(ctx context.Context, tenantID, candidateID string) ([]domain.StatusLog, error) {
	out := make([]domain.StatusLog, 0)
	if !validID(candidateID) {
		return out, nil
	}

	const query = `SELECT log_id::text, tenant_id, candidate_id::text, from_status, to_status, COALESCE(note, ''), COALESCE(changed_by, ''), changed_at
        FROM candidate_status_logs WHERE tenant_id=$1 AND candidate_id=$2 ORDER BY changed_at DESC, log_id DESC`

	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, candidateID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				entry    domain.StatusLog
				from, to string
			)
			if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.CandidateID, &from, &to, &entry.Note, &entry.ChangedBy, &entry.ChangedAt); err != nil {
				return err
			}
			entry.FromStatus = domain.CandidateStatus(from)
			entry.ToStatus = domain.CandidateStatus(to)
			out = append(out, entry)
		}
		return rows.Err()
	})
	return out, err
}

// CreateFeedback stores a scorecard, bumps the candidate's last activity and
// records the outbox event.
func (r *Repository) CreateFeedback(ctx context.Context, f domain.InterviewFeedback) error {
	if !validID(f.CandidateID) {
		return domain.ErrCandidateNotFound
	}

	err := r.inTenantTx(ctx, f.TenantID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO interview_feedback (feedback_id, tenant_id, candidate_id, requisition_id, interviewer, stage, rating, recommendation, notes, submitted_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			f.ID, f.TenantID, f.CandidateID, nullIfEmpty(f.RequisitionID), f.Interviewer, f.Stage, f.Rating,
			string(f.Recommendation), nullIfEmpty(f.Notes), f.SubmittedAt,
		); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE candidates SET last_activity_at=GREATEST(COALESCE(last_activity_at, $3), $3), updated_at=$3
             WHERE tenant_id=$1 AND candidate_id=$2`,
			f.TenantID, f.CandidateID, f.SubmittedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrCandidateNotFound
		}

		return r.insertOutbox(ctx, tx, outboxEvent{
			TenantID:    f.TenantID,
			AggregateID: f.CandidateID,
			EventType:   events.TypeFeedbackSubmitted,
			DedupeKey:   fmt.Sprintf("%s:%s", f.ID, events.TypeFeedbackSubmitted),
			Payload: events.FeedbackSubmitted{
				FeedbackID:     f.ID,
				CandidateID:    f.CandidateID,
				TenantID:       f.TenantID,
				RequisitionID:  f.RequisitionID,
				Interviewer:    f.Interviewer,
				Stage:          f.Stage,
				Rating:         f.Rating,
				Recommendation: string(f.Recommendation),
				SubmittedAt:    f.SubmittedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordCandidatePersisted(f.SubmittedAt)
	return nil
}

// ListFeedback returns a candidate's scorecards, newest first.
func (r *Repository) ListFeedback(ctx context.Context, tenantID, candidateID string) ([]domain.InterviewFeedback, error) {
	out := make([]domain.InterviewFeedback, 0)
	if !validID(candidateID) {
		return out, nil
	}

	const query = `SELECT feedback_id::text, tenant_id, candidate_id::text, COALESCE(requisition_id::text, ''), interviewer, stage, rating, recommendation, COALESCE(notes, ''), submitted_at
        FROM interview_feedback WHERE tenant_id=$1 AND candidate_id=$2 ORDER BY submitted_at DESC, feedback_id DESC`

	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, candidateID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				f   domain.InterviewFeedback
				rec string
			)
			if err := rows.Scan(&f.ID, &f.TenantID, &f.CandidateID, &f.RequisitionID, &f.Interviewer, &f.Stage, &f.Rating, &rec, &f.Notes, &f.SubmittedAt); err != nil {
				return err
			}
			f.Recommendation = domain.Recommendation(rec)
			out = append(out, f)
		}
		return rows.Err()
	})
	return out, err
}

// UpdateAvatar points the candidate at a newly uploaded avatar object.
func (r *Repository) UpdateAvatar(ctx context.Context, tenantID, candidateID, key, url string, at time.Time) error {
	if !validID(candidateID) {
		return domain.ErrCandidateNotFound
	}
	return r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE candidates SET avatar_key=$3, avatar_url=$4, updated_at=$5 WHERE tenant_id=$1 AND candidate_id=$2`,
			tenantID, candidateID, nullIfEmpty(key), nullIfEmpty(url), at,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrCandidateNotFound
		}
		return nil
	})
}

// BackfillLastActivity sets last_activity_at to the newest of creation, status
// changes and feedback for every candidate of the tenant where that is later
// than the stored value.
func (r *Repository) BackfillLastActivity(ctx context.Context, tenantID string) (int64, error) {
	const stmt = `WITH latest AS (
            SELECT c.candidate_id,
                   GREATEST(c.created_at,
                            COALESCE((SELECT MAX(l.changed_at) FROM candidate_status_logs l WHERE l.tenant_id = c.tenant_id AND l.candidate_id = c.candidate_id), c.created_at),
                            COALESCE((SELECT MAX(f.submitted_at) FROM interview_feedback f WHERE f.tenant_id = c.tenant_id AND f.candidate_id = c.candidate_id), c.created_at)
                   ) AS at
              FROM candidates c
             WHERE c.tenant_id = $1
        )
        UPDATE candidates SET last_activity_at = latest.at
          FROM latest
         WHERE candidates.candidate_id = latest.candidate_id
           AND (candidates.last_activity_at IS NULL OR candidates.last_activity_at < latest.at)`

	var updated int64
	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, tenantID)
		if err != nil {
			return err
		}
		updated = tag.RowsAffected()
		return nil
	})
	return updated, err
}
