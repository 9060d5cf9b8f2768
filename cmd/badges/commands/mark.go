package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/badgecollector/badgecollector/pkg/engine"
	"github.com/badgecollector/badgecollector/pkg/report"
)

func newMarkCommand() *cobra.Command {
	var details string

	cmd := &cobra.Command{
		Use:   "mark <achievement> <status>",
		Short: "Set an achievement's status by hand",
		Long: `Record a status for one achievement, for example after earning a manual
badge in the browser. The change goes through the same transition rules as a
run and is written to history when history is enabled.`,
		Example: `  badges mark expert earned --details "reached expert tier"
  badges mark collector skipped --details "not worth it"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			status, err := engine.ParseStatus(args[1])
			if err != nil {
				return engine.NewValidationError("cannot mark", err).
					WithAchievement(id).WithCode(engine.ErrCodeInvalidStatus)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.requireCatalogIDs([]string{id}); err != nil {
				return err
			}
			if err := a.tracker().SetStatus(ctx, id, status, details); err != nil {
				return err
			}

			log.Info().Str("achievement", id).Str("status", string(status)).Msg("Status updated")
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n", report.Icon(status), id, status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&details, "details", "d", "", "note stored with the status")

	return cmd
}

func newResetCommand() *cobra.Command {
	var (
		all         bool
		interrupted bool
	)

	cmd := &cobra.Command{
		Use:   "reset [achievement...]",
		Short: "Move achievements back to pending",
		Long: `Reset achievements to pending so the next run attempts them again.

Pass ids explicitly, --interrupted to reset everything a crashed run left in
attempting, or --all to start over.`,
		Example: `  badges reset competitor
  badges reset --interrupted
  badges reset --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && (all || interrupted) {
				return errors.New("pass achievement ids or a selector flag, not both")
			}
			if all && interrupted {
				return errors.New("--all and --interrupted are mutually exclusive")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			tracker := a.tracker()
			ids := args
			details := "reset by operator"

			switch {
			case all:
				ids = a.catalog.IDs()
			case interrupted:
				p, err := tracker.Snapshot(ctx)
				if err != nil {
					return err
				}
				ids = nil
				for _, id := range a.catalog.IDs() {
					if p.StatusOf(id) == engine.StatusAttempting {
						ids = append(ids, id)
					}
				}
				details = "reset after interrupted run"
			default:
				if len(ids) == 0 {
					return errors.New("no achievements given; pass ids, --interrupted or --all")
				}
				if err := a.requireCatalogIDs(ids); err != nil {
					return err
				}
			}

			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to reset.")
				return nil
			}
			if err := tracker.Reset(ctx, ids, details); err != nil {
				return err
			}

			log.Info().Int("count", len(ids)).Msg("Achievements reset")
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %d achievement(s) to pending.\n", len(ids))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "reset every achievement")
	cmd.Flags().BoolVar(&interrupted, "interrupted", false, "reset achievements left in attempting")

	return cmd
}
