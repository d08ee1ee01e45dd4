package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/talent/internal/domain"
	"example.com/talent/internal/recency"
)

const requisitionColumns = `requisition_id::text, tenant_id, title, COALESCE(department, ''), COALESCE(location, ''), COALESCE(employment_type, ''),
        openings, COALESCE(hiring_manager, ''), status, created_at, updated_at`

func scanRequisition(row pgx.Row) (domain.JobRequisition, error) {
	var (
		req    domain.JobRequisition
		status string
	)
	err := row.Scan(&req.ID, &req.TenantID, &req.Title, &req.Department, &req.Location, &req.EmploymentType,
		&req.Openings, &req.HiringManager, &status, &req.CreatedAt, &req.UpdatedAt)
	req.Status = domain.RequisitionStatus(status)
	return req, err
}

// CreateRequisition persists a new requisition.
func (r *Repository) CreateRequisition(ctx context.Context, req domain.JobRequisition) error {
	return r.inTenantTx(ctx, req.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO job_requisitions (requisition_id, tenant_id, title, department, location, employment_type, openings, hiring_manager, status, created_at, updated_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			req.ID, req.TenantID, req.Title, nullIfEmpty(req.Department), nullIfEmpty(req.Location),
			nullIfEmpty(req.EmploymentType), req.Openings, nullIfEmpty(req.HiringManager), string(req.Status),
			req.CreatedAt, req.UpdatedAt,
		)
		return err
	})
}

// GetRequisition retrieves a requisition by ID. It returns nil when the requisition is not visible to the tenant.
func (r *Repository) GetRequisition(ctx context.Context, tenantID, requisitionID string) (*domain.JobRequisition, error) {
	if !validID(requisitionID) {
		return nil, nil
	}
	query := `SELECT ` + requisitionColumns + ` FROM job_requisitions WHERE tenant_id=$1 AND requisition_id=$2`

	var found *domain.JobRequisition
	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		req, err := scanRequisition(tx.QueryRow(ctx, query, tenantID, requisitionID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &req
		return nil
	})
	return found, err
}

// ListRequisitions returns requisitions ordered newest first.
func (r *Repository) ListRequisitions(ctx context.Context, tenantID string, status domain.RequisitionStatus, cursor *domain.Cursor, limit int) ([]domain.JobRequisition, *domain.Cursor, error) {
	args := []interface{}{tenantID, limit}
	query := `SELECT ` + requisitionColumns + ` FROM job_requisitions WHERE tenant_id=$1`

	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		query += fmt.Sprintf(" AND (created_at, requisition_id) < ($%d, $%d)", len(args)-1, len(args))
	}
	query += ` ORDER BY created_at DESC, requisition_id DESC LIMIT $2`

	results := make([]domain.JobRequisition, 0, limit)
	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			req, err := scanRequisition(rows)
			if err != nil {
				return err
			}
			results = append(results, req)
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

// UpdateRequisitionStatus moves a requisition to status.
func (r *Repository) UpdateRequisitionStatus(ctx context.Context, tenantID, requisitionID string, status domain.RequisitionStatus, at time.Time) error {
	if !validID(requisitionID) {
		return domain.ErrRequisitionNotFound
	}
	return r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE job_requisitions SET status=$3, updated_at=$4 WHERE tenant_id=$1 AND requisition_id=$2`,
			tenantID, requisitionID, string(status), at,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrRequisitionNotFound
		}
		return nil
	})
}

// PipelineCounts tallies a requisition's candidates by status and by recency
// bucket relative to asOf.
func (r *Repository) PipelineCounts(ctx context.Context, tenantID, requisitionID string, asOf time.Time) (map[domain.CandidateStatus]int, map[recency.Bucket]int, error) {
	byStatus := make(map[domain.CandidateStatus]int)
	byRecency := make(map[recency.Bucket]int)
	if !validID(requisitionID) {
		return byStatus, byRecency, nil
	}

	args := []interface{}{tenantID, requisitionID}
	filters := make([]string, 0, len(recency.Buckets))
	for _, bucket := range recency.Buckets {
		var cond string
		cond, args = windowCondition("last_activity_at", recency.WindowFor(bucket, asOf), args)
		filters = append(filters, fmt.Sprintf("COUNT(*) FILTER (WHERE %s)", cond))
	}
	recencyQuery := `SELECT ` + strings.Join(filters, ", ") + ` FROM candidates WHERE tenant_id=$1 AND requisition_id=$2`

	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT status, COUNT(*) FROM candidates WHERE tenant_id=$1 AND requisition_id=$2 GROUP BY status`,
			tenantID, requisitionID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var (
				status string
				count  int
			)
			if err := rows.Scan(&status, &count); err != nil {
				rows.Close()
				return err
			}
			byStatus[domain.CandidateStatus(status)] = count
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		counts := make([]int, len(recency.Buckets))
		dest := make([]interface{}, len(counts))
		for i := range counts {
			dest[i] = &counts[i]
		}
		if err := tx.QueryRow(ctx, recencyQuery, args...).Scan(dest...); err != nil {
			return err
		}
		for i, bucket := range recency.Buckets {
			byRecency[bucket] = counts[i]
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return byStatus, byRecency, nil
}
