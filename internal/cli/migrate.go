package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/talent/internal/migrations"
)

func init() {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Run:   runMigrate,
	}
	RootCmd.AddCommand(cmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	pool, err := openPool(ctx, loadConfig())
	if err != nil {
		exitErr("connect postgres", err)
	}
	defer pool.Close()

	applied, err := migrations.Apply(ctx, pool)
	if err != nil {
		exitErr("migrate", err)
	}
	if len(applied) == 0 {
		fmt.Println("schema up to date")
		return
	}
	for _, version := range applied {
		fmt.Printf("applied %s\n", version)
	}
}
