package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"example.com/talent/internal/domain"
	"example.com/talent/internal/persistence/memory"
	"example.com/talent/internal/recency"
	"example.com/talent/internal/report"
)

func TestExportCandidatesWalksAllPages(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	svc := domain.NewService(memory.NewInMemoryRepository(), clock)

	total := exportPageSize + 5
	for i := 0; i < total; i++ {
		_, _, err := svc.CreateCandidate(ctx, domain.CreateCandidateInput{TenantID: "tenant-a", FullName: "Candidate"})
		require.NoError(t, err)
	}

	asOf := tick.Add(60 * recency.Day)
	var buf bytes.Buffer
	count, err := exportCandidates(ctx, svc, "tenant-a", asOf, &buf)
	require.NoError(t, err)
	require.Equal(t, total, count)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.CandidatesSheet)
	require.NoError(t, err)
	require.Len(t, rows, total+1)
	require.Equal(t, "1-3 Months", rows[1][5])
}

func TestAvatarContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.Equal(t, "image/png", avatarContentType("avatar.png", nil))
	require.Equal(t, "image/png", avatarContentType("avatar", png))
}

func TestRootRegistersCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"migrate", "backfill-activity", "check-pagination", "upload-avatar", "export"} {
		require.True(t, names[want], want)
	}
}
