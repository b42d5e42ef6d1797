package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/shramba/internal/hierarchy"
	"github.com/erazemk/shramba/internal/store"
)

var (
	rulesCmd = &cobra.Command{
		Use:   "rules",
		Short: "Inspect hierarchy rules",
	}

	rulesPresetsCmd = &cobra.Command{
		Use:   "presets",
		Short: "List the built-in rule presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range hierarchy.PresetNames() {
				marker := ""
				if name == cfg.Rules.DefaultPreset {
					marker = " (default)"
				}
				fmt.Fprintf(out, "%s%s\n", name, marker)
			}
			return nil
		},
	}

	rulesCheckCmd = &cobra.Command{
		Use:   "check <owner-id>...",
		Short: "Check owners' rules for cycles and their locations for structural damage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			out := cmd.OutOrStdout()
			var failed []error
			for _, ownerID := range args {
				rules, err := store.GetRuleSet(ctx, database, ownerID, cfg.Rules.DefaultPreset)
				if err != nil {
					return err
				}
				if err := hierarchy.ValidateAcyclic(rules.Rules()); err != nil {
					failed = append(failed, fmt.Errorf("owner %s rules: %w", ownerID, err))
				}
				if err := store.CheckForest(ctx, database, ownerID); err != nil {
					failed = append(failed, fmt.Errorf("owner %s locations: %w", ownerID, err))
				}
				fmt.Fprintf(out, "%s: %d rules checked\n", ownerID, len(rules.Rules()))
			}
			return errors.Join(failed...)
		},
	}
)

func init() {
	rulesCmd.AddCommand(rulesPresetsCmd, rulesCheckCmd)
}
