package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"example.com/talent/internal/maintenance"
)

func init() {
	cmd := &cobra.Command{
		Use:   "check-pagination",
		Short: "Walk every candidate page and report duplicates or ordering gaps",
		Run:   runCheckPagination,
	}
	addTenantFlag(cmd)
	cmd.Flags().Int("page-size", 25, "Page size used for the walk")
	RootCmd.AddCommand(cmd)
}

func runCheckPagination(cmd *cobra.Command, args []string) {
	pageSize, _ := cmd.Flags().GetInt("page-size")

	ctx := cmd.Context()
	svc, pool, err := openService(ctx)
	if err != nil {
		exitErr("open service", err)
	}
	defer pool.Close()

	report, err := maintenance.CheckPagination(ctx, svc, tenantID, pageSize)
	if err != nil {
		exitErr("check pagination", err)
	}

	fmt.Printf("pages=%d candidates=%d duplicates=%d order_violations=%d\n",
		report.Pages, report.Candidates, len(report.Duplicates), report.OrderViolations)
	if !report.OK() {
		if len(report.Duplicates) > 0 {
			fmt.Printf("duplicate ids: %s\n", strings.Join(report.Duplicates, ", "))
		}
		os.Exit(2)
	}
}
