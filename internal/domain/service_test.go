package domain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/talent/internal/domain"
	"example.com/talent/internal/persistence/memory"
	"example.com/talent/internal/recency"
)

const tenant = "tenant-1"

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T, opts ...domain.Option) (*domain.Service, *memory.InMemoryRepository, *fixedClock) {
	t.Helper()
	clock := &fixedClock{now: time.Date(2026, time.February, 7, 15, 22, 49, 0, time.UTC)}
	repo := memory.NewInMemoryRepository()
	return domain.NewService(repo, clock.Now, opts...), repo, clock
}

func createCandidate(t *testing.T, svc *domain.Service, name string) *domain.Candidate {
	t.Helper()
	candidate, replay, err := svc.CreateCandidate(context.Background(), domain.CreateCandidateInput{
		TenantID: tenant,
		FullName: name,
		Email:    name + "@example.com",
		Source:   "referral",
	})
	require.NoError(t, err)
	require.False(t, replay)
	return candidate
}

func TestCreateCandidateIsIdempotent(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	input := domain.CreateCandidateInput{
		TenantID:       tenant,
		FullName:       "  Ada Lovelace ",
		Email:          "ADA@Example.com",
		Skills:         []string{"Go", "go", " SQL ", ""},
		Source:         "careers-page",
		IdempotencyKey: "key-1",
	}

	first, replay, err := svc.CreateCandidate(ctx, input)
	require.NoError(t, err)
	require.False(t, replay)
	require.Equal(t, "Ada Lovelace", first.FullName)
	require.Equal(t, "ada@example.com", first.Email)
	require.Equal(t, []string{"Go", "SQL"}, first.Skills)
	require.Equal(t, domain.StatusApplied, first.Status)
	require.NotNil(t, first.LastActivityAt)

	second, replay, err := svc.CreateCandidate(ctx, input)
	require.NoError(t, err)
	require.True(t, replay)
	require.Equal(t, first.ID, second.ID)
}

func TestCreateCandidateRejectsUnknownRequisition(t *testing.T) {
	svc, _, _ := newService(t)

	_, _, err := svc.CreateCandidate(context.Background(), domain.CreateCandidateInput{
		TenantID:      tenant,
		RequisitionID: "missing",
		FullName:      "Grace Hopper",
	})
	require.ErrorIs(t, err, domain.ErrRequisitionNotFound)
}

func TestGetCandidateLabelsRecencyAgainstReference(t *testing.T) {
	svc, _, clock := newService(t)
	ctx := context.Background()
	candidate := createCandidate(t, svc, "alan")

	record, err := svc.GetCandidate(ctx, tenant, candidate.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, recency.Fresh, record.Recency)
	require.True(t, record.AsOf.Equal(clock.Now()))

	later := clock.Now().Add(100 * recency.Day)
	record, err = svc.GetCandidate(ctx, tenant, candidate.ID, later)
	require.NoError(t, err)
	require.Equal(t, recency.FourToSixMonths, record.Recency)

	_, err = svc.GetCandidate(ctx, "other-tenant", candidate.ID, time.Time{})
	require.ErrorIs(t, err, domain.ErrCandidateNotFound)
}

func TestListCandidatesPaginatesAndFiltersByRecency(t *testing.T) {
	svc, _, clock := newService(t)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, createCandidate(t, svc, name).ID)
		clock.Advance(20 * recency.Day)
	}

	var seen []string
	var cursor *domain.Cursor
	for {
		page, next, err := svc.ListCandidates(ctx, domain.ListCandidatesInput{TenantID: tenant, Cursor: cursor, Limit: 2})
		require.NoError(t, err)
		for _, record := range page {
			seen = append(seen, record.ID)
		}
		if next == nil {
			break
		}
		cursor = next
	}
	require.Equal(t, []string{ids[4], ids[3], ids[2], ids[1], ids[0]}, seen)

	// now is 100 days after the first candidate; "a" is 100 days old and "e" 20
	bucket := recency.FourToSixMonths
	stale, _, err := svc.ListCandidates(ctx, domain.ListCandidatesInput{TenantID: tenant, Recency: &bucket})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, ids[0], stale[0].ID)
	require.Equal(t, recency.FourToSixMonths, stale[0].Recency)

	fresh := recency.Fresh
	recent, _, err := svc.ListCandidates(ctx, domain.ListCandidatesInput{TenantID: tenant, Recency: &fresh})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, ids[4], recent[0].ID)
}

func TestListCandidatesRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newService(t)

	_, _, err := svc.ListCandidates(context.Background(), domain.ListCandidatesInput{TenantID: tenant, Status: "ghosted"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestChangeCandidateStatusRecordsHistory(t *testing.T) {
	svc, _, clock := newService(t)
	ctx := context.Background()
	candidate := createCandidate(t, svc, "barbara")

	clock.Advance(40 * recency.Day)
	change, err := svc.ChangeCandidateStatus(ctx, domain.ChangeStatusInput{
		TenantID:    tenant,
		CandidateID: candidate.ID,
		Status:      domain.StatusScreening,
		Note:        "phone screen booked",
		ChangedBy:   "recruiter-1",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusApplied, change.FromStatus)
	require.Equal(t, domain.StatusScreening, change.ToStatus)

	record, err := svc.GetCandidate(ctx, tenant, candidate.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, domain.StatusScreening, record.Status)
	require.Equal(t, recency.Fresh, record.Recency, "a status change counts as activity")

	logs, err := svc.ListStatusLogs(ctx, tenant, candidate.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "phone screen booked", logs[0].Note)
}

func TestChangeCandidateStatusValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	candidate := createCandidate(t, svc, "edsger")

	_, err := svc.ChangeCandidateStatus(ctx, domain.ChangeStatusInput{TenantID: tenant, CandidateID: candidate.ID, Status: "unknown"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.ChangeCandidateStatus(ctx, domain.ChangeStatusInput{TenantID: tenant, CandidateID: candidate.ID, Status: domain.StatusApplied})
	require.ErrorIs(t, err, domain.ErrStatusUnchanged)

	_, err = svc.ChangeCandidateStatus(ctx, domain.ChangeStatusInput{TenantID: tenant, CandidateID: candidate.ID, Status: domain.StatusRejected})
	require.NoError(t, err)

	_, err = svc.ChangeCandidateStatus(ctx, domain.ChangeStatusInput{TenantID: tenant, CandidateID: candidate.ID, Status: domain.StatusOffered})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.ChangeCandidateStatus(ctx, domain.ChangeStatusInput{TenantID: tenant, CandidateID: candidate.ID, Status: domain.StatusScreening})
	require.NoError(t, err, "terminal candidates can be reopened into screening")

	_, err = svc.ChangeCandidateStatus(ctx, domain.ChangeStatusInput{TenantID: tenant, CandidateID: "missing", Status: domain.StatusScreening})
	require.ErrorIs(t, err, domain.ErrCandidateNotFound)
}

func TestCandidateStatusTransitions(t *testing.T) {
	require.True(t, domain.StatusApplied.CanTransition(domain.StatusInterviewing))
	require.True(t, domain.StatusOffered.CanTransition(domain.StatusHired))
	require.False(t, domain.StatusScreening.CanTransition(domain.StatusApplied))
	require.False(t, domain.StatusHired.CanTransition(domain.StatusOffered))
	require.True(t, domain.StatusWithdrawn.CanTransition(domain.StatusScreening))
	require.False(t, domain.StatusOffered.CanTransition("bogus"))
}

func TestSubmitFeedbackTouchesActivity(t *testing.T) {
	svc, _, clock := newService(t)
	ctx := context.Background()

	req, err := svc.CreateRequisition(ctx, domain.CreateRequisitionInput{TenantID: tenant, Title: "Backend Engineer"})
	require.NoError(t, err)

	candidate, _, err := svc.CreateCandidate(ctx, domain.CreateCandidateInput{TenantID: tenant, RequisitionID: req.ID, FullName: "Ken"})
	require.NoError(t, err)

	clock.Advance(200 * recency.Day)
	record, err := svc.GetCandidate(ctx, tenant, candidate.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, recency.SixPlusMonths, record.Recency)

	feedback, err := svc.SubmitFeedback(ctx, domain.SubmitFeedbackInput{
		TenantID:       tenant,
		CandidateID:    candidate.ID,
		Interviewer:    "rob",
		Stage:          "onsite",
		Rating:         4,
		Recommendation: domain.RecommendYes,
	})
	require.NoError(t, err)
	require.Equal(t, req.ID, feedback.RequisitionID, "requisition defaults to the candidate's")

	record, err = svc.GetCandidate(ctx, tenant, candidate.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, recency.Fresh, record.Recency)

	items, err := svc.ListFeedback(ctx, tenant, candidate.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestSubmitFeedbackValidation(t *testing.T) {
	svc, _, _ := newService(t)
	candidate := createCandidate(t, svc, "dennis")

	cases := []domain.SubmitFeedbackInput{
		{Stage: "onsite", Rating: 3, Recommendation: domain.RecommendNo},
		{Interviewer: "a", Rating: 3, Recommendation: domain.RecommendNo},
		{Interviewer: "a", Stage: "onsite", Rating: 6, Recommendation: domain.RecommendNo},
		{Interviewer: "a", Stage: "onsite", Rating: 3, Recommendation: "maybe"},
	}
	for _, input := range cases {
		input.TenantID = tenant
		input.CandidateID = candidate.ID
		_, err := svc.SubmitFeedback(context.Background(), input)
		require.ErrorIs(t, err, domain.ErrInvalidFeedback)
	}
}

func TestPipelineSummaryCountsStatusesAndRecency(t *testing.T) {
	svc, _, clock := newService(t)
	ctx := context.Background()

	req, err := svc.CreateRequisition(ctx, domain.CreateRequisitionInput{TenantID: tenant, Title: "Designer", Openings: 2})
	require.NoError(t, err)

	first, _, err := svc.CreateCandidate(ctx, domain.CreateCandidateInput{TenantID: tenant, RequisitionID: req.ID, FullName: "One"})
	require.NoError(t, err)
	clock.Advance(60 * recency.Day)
	_, _, err = svc.CreateCandidate(ctx, domain.CreateCandidateInput{TenantID: tenant, RequisitionID: req.ID, FullName: "Two"})
	require.NoError(t, err)
	_, err = svc.ChangeCandidateStatus(ctx, domain.ChangeStatusInput{TenantID: tenant, CandidateID: first.ID, Status: domain.StatusWithdrawn})
	require.NoError(t, err)
	createCandidate(t, svc, "unrelated")

	summary, err := svc.PipelineSummary(ctx, tenant, req.ID, clock.Now().Add(45*recency.Day))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total)
	require.Equal(t, 1, summary.ByStatus[domain.StatusApplied])
	require.Equal(t, 1, summary.ByStatus[domain.StatusWithdrawn])
	require.Equal(t, 2, summary.ByRecency[recency.OneToThreeMonths])
	require.Equal(t, 0, summary.ByRecency[recency.Fresh])

	_, err = svc.PipelineSummary(ctx, tenant, "missing", time.Time{})
	require.ErrorIs(t, err, domain.ErrRequisitionNotFound)
}

func TestChangeRequisitionStatus(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	req, err := svc.CreateRequisition(ctx, domain.CreateRequisitionInput{TenantID: tenant, Title: "SRE"})
	require.NoError(t, err)
	require.Equal(t, 1, req.Openings)
	require.Equal(t, domain.RequisitionOpen, req.Status)

	updated, err := svc.ChangeRequisitionStatus(ctx, tenant, req.ID, domain.RequisitionOnHold)
	require.NoError(t, err)
	require.Equal(t, domain.RequisitionOnHold, updated.Status)

	_, err = svc.ChangeRequisitionStatus(ctx, tenant, req.ID, domain.RequisitionOnHold)
	require.ErrorIs(t, err, domain.ErrStatusUnchanged)

	_, err = svc.ChangeRequisitionStatus(ctx, tenant, req.ID, "archived")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	items, next, err := svc.ListRequisitions(ctx, tenant, domain.RequisitionOnHold, nil, 10)
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, items, 1)
}

func TestBackfillLastActivity(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.BackfillLastActivity(context.Background(), " ")
	require.Error(t, err)

	createCandidate(t, svc, "x")
	updated, err := svc.BackfillLastActivity(context.Background(), tenant)
	require.NoError(t, err)
	require.Zero(t, updated, "candidates with current activity are left alone")
}

type fakeAvatarStore struct {
	puts    map[string][]byte
	deleted []string
	putErr  error
}

func (f *fakeAvatarStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeAvatarStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestSetAvatarReplacesPreviousObject(t *testing.T) {
	store := &fakeAvatarStore{}
	svc, _, _ := newService(t, domain.WithAvatarStore(store, 16))
	ctx := context.Background()
	candidate := createCandidate(t, svc, "margaret")

	first, err := svc.SetAvatar(ctx, tenant, candidate.ID, "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	require.Contains(t, first.AvatarKey, tenant+"/candidates/"+candidate.ID+"/avatar-")
	require.Contains(t, first.AvatarKey, ".png")
	require.Equal(t, "https://cdn.example.com/"+first.AvatarKey, first.AvatarURL)

	second, err := svc.SetAvatar(ctx, tenant, candidate.ID, "image/jpeg; charset=binary", []byte("jpg"))
	require.NoError(t, err)
	require.NotEqual(t, first.AvatarKey, second.AvatarKey)
	require.Equal(t, []string{first.AvatarKey}, store.deleted)
}

func TestSetAvatarValidation(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.SetAvatar(context.Background(), tenant, "id", "image/png", []byte("x"))
	require.ErrorIs(t, err, domain.ErrAvatarStorageDisabled)

	store := &fakeAvatarStore{}
	svc, _, _ = newService(t, domain.WithAvatarStore(store, 4))
	candidate := createCandidate(t, svc, "linus")
	ctx := context.Background()

	_, err = svc.SetAvatar(ctx, tenant, candidate.ID, "application/pdf", []byte("x"))
	require.ErrorIs(t, err, domain.ErrUnsupportedAvatarType)

	_, err = svc.SetAvatar(ctx, tenant, candidate.ID, "image/png", nil)
	require.ErrorIs(t, err, domain.ErrEmptyAvatar)

	_, err = svc.SetAvatar(ctx, tenant, candidate.ID, "image/png", []byte("too large"))
	require.ErrorIs(t, err, domain.ErrAvatarTooLarge)

	store.putErr = errors.New("bucket unavailable")
	_, err = svc.SetAvatar(ctx, tenant, candidate.ID, "image/webp", []byte("ok"))
	require.ErrorContains(t, err, "bucket unavailable")
}

func TestNowFollowsInjectedClock(t *testing.T) {
	local := time.FixedZone("UTC+2", 2*60*60)
	clock := &fixedClock{now: time.Date(2026, time.May, 1, 9, 0, 0, 0, local)}
	svc := domain.NewService(memory.NewInMemoryRepository(), clock.Now)

	require.True(t, svc.Now().Equal(clock.Now()))
	require.Equal(t, time.UTC, svc.Now().Location())

	clock.Advance(45 * recency.Day)
	require.True(t, svc.Now().Equal(clock.Now()))
}
