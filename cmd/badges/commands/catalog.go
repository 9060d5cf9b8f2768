package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/badgecollector/badgecollector/pkg/catalog"
)

func newCatalogCommand() *cobra.Command {
	var (
		phase      int
		manualOnly bool
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the achievements the collector knows about",
		Example: `  badges catalog
  badges catalog --phase 2
  badges catalog --manual --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := catalog.Default()

			items := c.All()
			switch {
			case manualOnly:
				items = c.ByPhase(0)
			case phase > 0:
				items = c.ByPhase(phase)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, items)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPHASE\tTIER")
			for _, a := range items {
				p := "-"
				if a.HasPhase() {
					p = fmt.Sprint(a.Phase)
				}
				tier := a.Tier
				if tier == "" {
					tier = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Category, p, tier)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d achievements, %d automatable\n", len(items), countAutomatable(items))
			return nil
		},
	}

	cmd.Flags().IntVarP(&phase, "phase", "p", 0, "only list achievements in this phase")
	cmd.Flags().BoolVar(&manualOnly, "manual", false, "only list achievements that cannot be automated")

	return cmd
}

func countAutomatable(items []catalog.Achievement) int {
	n := 0
	for _, a := range items {
		if a.Automatable {
			n++
		}
	}
	return n
}
