package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/shramba/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations and print the schema status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		statuses, err := db.Status(ctx, database)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Fprintf(out, "%05d  %-8s %s\n", s.Version, state, s.Path)
		}
		return nil
	},
}
