//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/talent/internal/domain"
	"example.com/talent/internal/migrations"
	"example.com/talent/internal/recency"
)

func setupRepository(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("talent"),
		postgrescontainer.WithUsername("talent"),
		postgrescontainer.WithPassword("talent"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = migrations.Apply(ctx, pool)
	require.NoError(t, err)

	return NewRepository(pool), pool
}

func newCandidate(tenantID, requisitionID string, createdAt time.Time, lastActivity *time.Time) domain.Candidate {
	return domain.Candidate{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		RequisitionID:  requisitionID,
		FullName:       "Ada Lovelace",
		Email:          "ada@example.com",
		Skills:         []string{"go", "postgres"},
		Source:         "referral",
		Status:         domain.StatusApplied,
		LastActivityAt: lastActivity,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestRepositoryRespectsTenantIsolation(t *testing.T) {
	ctx := context.Background()
	repo, pool := setupRepository(t)

	now := time.Now().UTC().Truncate(time.Microsecond)
	candidate := newCandidate(uuid.NewString(), "", now, &now)

	require.NoError(t, repo.CreateCandidate(ctx, candidate, "key-1"))

	stored, err := repo.GetCandidate(ctx, candidate.TenantID, candidate.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, candidate.ID, stored.ID)
	require.Equal(t, []string{"go", "postgres"}, stored.Skills)

	replay, err := repo.FindCandidateByIdempotency(ctx, candidate.TenantID, "key-1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	require.Equal(t, candidate.ID, replay.ID)

	storedOther, err := repo.GetCandidate(ctx, uuid.NewString(), candidate.ID)
	require.NoError(t, err)
	require.Nil(t, storedOther, "other tenants must not see the candidate")

	var outboxRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id=$1 AND event_type='candidate.created'`, candidate.ID).Scan(&outboxRows))
	require.Equal(t, 1, outboxRows)
}

func TestRepositoryStatusChangeIsOptimistic(t *testing.T) {
	ctx := context.Background()
	repo, pool := setupRepository(t)

	created := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Microsecond)
	candidate := newCandidate(uuid.NewString(), "", created, &created)
	require.NoError(t, repo.CreateCandidate(ctx, candidate, ""))

	changedAt := time.Now().UTC().Truncate(time.Microsecond)
	change := domain.StatusLog{
		ID:          uuid.NewString(),
		TenantID:    candidate.TenantID,
		CandidateID: candidate.ID,
		FromStatus:  domain.StatusApplied,
		ToStatus:    domain.StatusScreening,
		ChangedBy:   "recruiter-1",
		ChangedAt:   changedAt,
	}
	require.NoError(t, repo.ApplyStatusChange(ctx, change))

	stale := change
	stale.ID = uuid.NewString()
	stale.ToStatus = domain.StatusRejected
	require.ErrorIs(t, repo.ApplyStatusChange(ctx, stale), domain.ErrStatusConflict)

	missing := change
	missing.CandidateID = uuid.NewString()
	require.ErrorIs(t, repo.ApplyStatusChange(ctx, missing), domain.ErrCandidateNotFound)

	stored, err := repo.GetCandidate(ctx, candidate.TenantID, candidate.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusScreening, stored.Status)
	require.NotNil(t, stored.LastActivityAt)
	require.True(t, changedAt.Equal(*stored.LastActivityAt))

	logs, err := repo.ListStatusLogs(ctx, candidate.TenantID, candidate.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, domain.StatusScreening, logs[0].ToStatus)

	var outboxRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id=$1 AND event_type='candidate.status_changed'`, candidate.ID).Scan(&outboxRows))
	require.Equal(t, 1, outboxRows)
}

func TestRepositoryRecencyFilterAndPipeline(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepository(t)

	asOf := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	tenantID := uuid.NewString()

	req := domain.JobRequisition{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Title:     "Backend Engineer",
		Openings:  2,
		Status:    domain.RequisitionOpen,
		CreatedAt: asOf.Add(-200 * recency.Day),
		UpdatedAt: asOf.Add(-200 * recency.Day),
	}
	require.NoError(t, repo.CreateRequisition(ctx, req))

	ago := func(days int) *time.Time {
		at := asOf.Add(-time.Duration(days) * recency.Day)
		return &at
	}
	seeds := []*time.Time{ago(1), ago(30), ago(31), ago(90), ago(91), ago(180), ago(181), nil}
	for i, last := range seeds {
		c := newCandidate(tenantID, req.ID, asOf.Add(-time.Duration(len(seeds)-i)*time.Hour), last)
		require.NoError(t, repo.CreateCandidate(ctx, c, ""))
	}

	expected := map[recency.Bucket]int{
		recency.Fresh:            2,
		recency.OneToThreeMonths: 2,
		recency.FourToSixMonths:  2,
		recency.SixPlusMonths:    2,
	}
	for bucket, want := range expected {
		window := recency.WindowFor(bucket, asOf)
		got, _, err := repo.ListCandidates(ctx, tenantID, domain.CandidateQuery{RequisitionID: req.ID, Recency: &window}, nil, 50)
		require.NoError(t, err)
		require.Len(t, got, want, bucket.String())
		for _, c := range got {
			require.Equal(t, bucket, recency.Classify(c.LastActivityAt, asOf))
		}
	}

	byStatus, byRecency, err := repo.PipelineCounts(ctx, tenantID, req.ID, asOf)
	require.NoError(t, err)
	require.Equal(t, len(seeds), byStatus[domain.StatusApplied])
	require.Equal(t, expected, byRecency)
}

func TestRepositoryPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepository(t)

	tenantID := uuid.NewString()
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.CreateCandidate(ctx, newCandidate(tenantID, "", at, &at), ""))
	}

	seen := make(map[string]struct{})
	var cursor *domain.Cursor
	var previous time.Time
	for page := 0; page < 3; page++ {
		items, next, err := repo.ListCandidates(ctx, tenantID, domain.CandidateQuery{}, cursor, 2)
		require.NoError(t, err)
		for _, c := range items {
			_, dup := seen[c.ID]
			require.False(t, dup)
			seen[c.ID] = struct{}{}
			if !previous.IsZero() {
				require.True(t, c.CreatedAt.Before(previous))
			}
			previous = c.CreatedAt
		}
		cursor = next
		if cursor == nil {
			break
		}
	}
	require.Len(t, seen, 5)
}

func TestRepositoryBackfillLastActivity(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepository(t)

	created := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	candidate := newCandidate(uuid.NewString(), "", created, nil)
	require.NoError(t, repo.CreateCandidate(ctx, candidate, ""))

	submitted := created.Add(72 * time.Hour)
	require.NoError(t, repo.CreateFeedback(ctx, domain.InterviewFeedback{
		ID:             uuid.NewString(),
		TenantID:       candidate.TenantID,
		CandidateID:    candidate.ID,
		Interviewer:    "grace",
		Stage:          "onsite",
		Rating:         4,
		Recommendation: domain.RecommendYes,
		SubmittedAt:    submitted,
	}))

	updated, err := repo.BackfillLastActivity(ctx, candidate.TenantID)
	require.NoError(t, err)
	require.Zero(t, updated, "feedback already bumped last activity")

	feedback, err := repo.ListFeedback(ctx, candidate.TenantID, candidate.ID)
	require.NoError(t, err)
	require.Len(t, feedback, 1)

	stored, err := repo.GetCandidate(ctx, candidate.TenantID, candidate.ID)
	require.NoError(t, err)
	require.True(t, submitted.Equal(*stored.LastActivityAt))
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
