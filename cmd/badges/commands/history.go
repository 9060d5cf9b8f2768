package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/badgecollector/badgecollector/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit       int
		achievement string
		transitions bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs or status transitions",
		Long: `List recent runs with their handler counts, or the status transitions
recorded for the campaign. History must be enabled in the config.`,
		Example: `  # Last 10 runs
  badges history

  # Every transition of one achievement
  badges history --achievement titanic-submission

  # Most recent transitions across the catalog
  badges history --transitions --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if a.history == nil {
				return errors.New("history is disabled; set history.enabled: true in the config")
			}

			out := cmd.OutOrStdout()
			if achievement != "" || transitions {
				if achievement != "" {
					if err := a.requireCatalogIDs([]string{achievement}); err != nil {
						return err
					}
				}
				list, err := a.history.ListTransitions(ctx, achievement, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(out, list)
				}
				return printTransitions(out, list)
			}

			runs, err := a.history.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(out, runs)
			}
			return printRuns(out, runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of entries")
	cmd.Flags().StringVarP(&achievement, "achievement", "a", "", "show transitions of one achievement")
	cmd.Flags().BoolVarP(&transitions, "transitions", "t", false, "show transitions instead of runs")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRuns(out io.Writer, runs []*stores.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tACCOUNT\tSUCCEEDED\tSTATE")
	for _, r := range runs {
		duration, state := "-", "running"
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
			state = "complete"
		}
		if r.Interrupted {
			state = "interrupted"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), duration,
			orDash(r.Account), r.Succeeded, r.Attempted, state)
	}
	return w.Flush()
}

func printTransitions(out io.Writer, list []*stores.Transition) error {
	if len(list) == 0 {
		fmt.Fprintln(out, "No transitions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tACHIEVEMENT\tFROM\tTO\tRUN\tDETAILS")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.At.Local().Format(time.DateTime), t.Achievement, t.From, t.To,
			orDash(shortID(t.RunID)), orDash(t.Details))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
