package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "backfill-activity",
		Short: "Recompute last activity from status logs and feedback",
		Long:  "Sets each candidate's last activity to the newest of its creation time, status changes and interview feedback. Values never move backwards.",
		Run:   runBackfill,
	}
	addTenantFlag(cmd)
	RootCmd.AddCommand(cmd)
}

func runBackfill(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	svc, pool, err := openService(ctx)
	if err != nil {
		exitErr("open service", err)
	}
	defer pool.Close()

	updated, err := svc.BackfillLastActivity(ctx, tenantID)
	if err != nil {
		exitErr("backfill", err)
	}
	fmt.Printf("updated %d candidates\n", updated)
}
