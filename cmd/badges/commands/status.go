package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/badgecollector/badgecollector/pkg/report"
	"github.com/badgecollector/badgecollector/pkg/stores"
)

const watchDebounce = 250 * time.Millisecond

func newStatusCommand() *cobra.Command {
	var (
		format string
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show progress across the catalog",
		Long: `Print the progress report: earned count, per-status totals and every
achievement grouped by phase. Achievements left in attempting by an
interrupted run are listed at the end.`,
		Example: `  # Table report
  badges status

  # Machine-readable
  badges status --format yaml

  # Re-render whenever a run updates the progress file
  badges status --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if jsonOutput {
				f = report.FormatJSON
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			out := cmd.OutOrStdout()
			if err := printStatus(ctx, out, a, f); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			fs, ok := a.store.(*stores.JSONFileStore)
			if !ok {
				return errors.New("--watch needs the json progress backend")
			}

			return stores.Watch(ctx, fs.Path(), watchDebounce, a.logger, func() {
				if f == report.FormatTable {
					fmt.Fprint(out, "\033[H\033[2J")
				}
				if err := printStatus(ctx, out, a, f); err != nil {
					log.Warn().Err(err).Msg("Failed to refresh status")
				}
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-render when the progress file changes")

	return cmd
}

func printStatus(ctx context.Context, w io.Writer, a *app, f report.Format) error {
	p, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	r := report.Build(a.catalog, p, time.Now())
	r.Account = a.cfg.Account
	return report.Render(w, r, f)
}
