// Package maintenance holds operational checks run from talentctl.
package maintenance

import (
	"context"
	"errors"
	"fmt"

	"example.com/talent/internal/domain"
)

// CandidateLister is the listing surface CheckPagination walks.
type CandidateLister interface {
	ListCandidates(ctx context.Context, input domain.ListCandidatesInput) ([]domain.CandidateRecord, *domain.Cursor, error)
}

// PaginationReport summarises one full walk of a tenant's candidate listing.
type PaginationReport struct {
	Pages           int
	Candidates      int
	Duplicates      []string
	OrderViolations int
}

// OK reports whether the walk saw every candidate once in descending order.
func (r PaginationReport) OK() bool {
	return len(r.Duplicates) == 0 && r.OrderViolations == 0
}

// ErrCursorStalled is returned when a page hands back the cursor it was given.
var ErrCursorStalled = errors.New("pagination cursor did not advance")

// CheckPagination pages through every candidate of tenantID and reports
// duplicates and ordering violations.
func CheckPagination(ctx context.Context, lister CandidateLister, tenantID string, pageSize int) (PaginationReport, error) {
	var (
		report   PaginationReport
		cursor   *domain.Cursor
		previous *domain.Cursor
	)
	seen := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		records, next, err := lister.ListCandidates(ctx, domain.ListCandidatesInput{
			TenantID: tenantID,
			Cursor:   cursor,
			Limit:    pageSize,
		})
		if err != nil {
			return report, fmt.Errorf("page %d: %w", report.Pages+1, err)
		}
		report.Pages++

		for _, rec := range records {
			report.Candidates++
			if _, dup := seen[rec.ID]; dup {
				report.Duplicates = append(report.Duplicates, rec.ID)
			}
			seen[rec.ID] = struct{}{}

			current := domain.Cursor{CreatedAt: rec.CreatedAt, ID: rec.ID}
			if previous != nil && !sortsAfter(current, *previous) {
				report.OrderViolations++
			}
			previous = &current
		}

		if next == nil {
			return report, nil
		}
		if cursor != nil && next.ID == cursor.ID && next.CreatedAt.Equal(cursor.CreatedAt) {
			return report, ErrCursorStalled
		}
		cursor = next
	}
}

// sortsAfter reports whether c comes strictly after prev in newest-first order.
func sortsAfter(c, prev domain.Cursor) bool {
	if c.CreatedAt.Equal(prev.CreatedAt) {
		return c.ID < prev.ID
	}
	return c.CreatedAt.Before(prev.CreatedAt)
}
