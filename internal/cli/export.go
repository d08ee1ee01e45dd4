package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"example.com/talent/internal/domain"
	"example.com/talent/internal/maintenance"
	"example.com/talent/internal/recency"
	"example.com/talent/internal/report"
)

const exportPageSize = 100

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export candidates with recency labels to an xlsx workbook",
		Run:   runExport,
	}
	addTenantFlag(cmd)
	cmd.Flags().StringP("out", "o", "candidates.xlsx", "Output path")
	cmd.Flags().String("as-of", "", "Reference instant for recency labels (default: now)")
	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")
	rawAsOf, _ := cmd.Flags().GetString("as-of")

	var asOf time.Time
	if rawAsOf != "" {
		parsed, ok := recency.Parse(rawAsOf)
		if !ok {
			exitErr("parse --as-of", fmt.Errorf("unrecognised timestamp %q", rawAsOf))
		}
		asOf = parsed
	}

	ctx := cmd.Context()
	svc, pool, err := openService(ctx)
	if err != nil {
		exitErr("open service", err)
	}
	defer pool.Close()

	if asOf.IsZero() {
		asOf = svc.Now()
	}

	f, err := os.Create(out)
	if err != nil {
		exitErr("create output", err)
	}
	defer f.Close()

	count, err := exportCandidates(ctx, svc, tenantID, asOf, f)
	if err != nil {
		exitErr("export", err)
	}
	fmt.Printf("wrote %d candidates to %s\n", count, out)
}

// exportCandidates pages through every candidate of tenant and renders the
// workbook to w.
func exportCandidates(ctx context.Context, lister maintenance.CandidateLister, tenant string, asOf time.Time, w io.Writer) (int, error) {
	var (
		records []domain.CandidateRecord
		cursor  *domain.Cursor
	)
	for {
		page, next, err := lister.ListCandidates(ctx, domain.ListCandidatesInput{
			TenantID: tenant,
			Cursor:   cursor,
			Limit:    exportPageSize,
			AsOf:     asOf,
		})
		if err != nil {
			return 0, err
		}
		records = append(records, page...)
		if next == nil {
			break
		}
		cursor = next
	}

	if err := report.WriteCandidates(w, records, asOf); err != nil {
		return 0, err
	}
	return len(records), nil
}
