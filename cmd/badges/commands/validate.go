package commands

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/badgecollector/badgecollector/pkg/actions"
	"github.com/badgecollector/badgecollector/pkg/catalog"
	"github.com/badgecollector/badgecollector/pkg/engine"
	"github.com/badgecollector/badgecollector/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check configuration, handlers, policies and scripts",
		Long: `Validate everything a run depends on without touching progress.

This command checks:
  - CUE syntax and schema conformance of the config file
  - The achievement catalog
  - Handler registration against the catalog
  - Operator policies (OPA/rego)
  - Operator scripts (Starlark)`,
		Example: `  badges validate
  badges validate -c ./campaign/badges.cue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			path := resolvedConfigPath()

			log.Info().Str("path", path).Msg("Validating configuration")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			check(out, "config", path)

			c, err := catalog.New(catalog.Default().All())
			if err != nil {
				return fmt.Errorf("catalog: %w", err)
			}
			check(out, "catalog", fmt.Sprintf("%d achievements in %d phases", c.Len(), len(c.Phases())))

			cli := actions.NewCLI(actions.CLIOptions{
				Binary:  cfg.CLI.Binary,
				Timeout: cfg.CLI.Timeout.Std(),
			}, log.Logger)

			scripts, err := actions.ScriptHandlers(cfg.Scripts, actions.ScriptOptions{CLI: cli})
			if err != nil {
				return err
			}
			check(out, "scripts", fmt.Sprintf("%d loaded", len(scripts)))

			reg := engine.NewRegistry(c)
			if err := reg.RegisterAll(actions.DefaultHandlers(actions.Env{})...); err != nil {
				return err
			}
			if err := reg.RegisterAll(scripts...); err != nil {
				return err
			}
			check(out, "handlers", fmt.Sprintf("%d registered", reg.Len()))

			caps := actions.DetectCapabilities(cfg.CLI.Binary, cfg.Browser.Enabled, cfg.Browser.Bin)
			gate, err := policy.NewEngine(ctx, caps, log.Logger)
			if err != nil {
				return err
			}
			if err := gate.LoadPolicies(ctx, cfg.Policies); err != nil {
				return err
			}
			check(out, "policies", fmt.Sprintf("%d compiled", len(gate.ListPolicies())))

			for _, name := range []string{engine.CapabilityCLI, engine.CapabilityBrowser} {
				state := "available"
				if !caps.Has(name) {
					state = "missing; handlers needing it will be skipped"
				}
				check(out, "capability "+name, state)
			}

			fmt.Fprintln(out, "Configuration is valid.")
			return nil
		},
	}

	return cmd
}

func check(w io.Writer, what, detail string) {
	fmt.Fprintf(w, "✓ %-18s %s\n", what, detail)
}
