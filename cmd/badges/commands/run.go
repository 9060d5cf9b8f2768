package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/badgecollector/badgecollector/pkg/actions"
	"github.com/badgecollector/badgecollector/pkg/engine"
	"github.com/badgecollector/badgecollector/pkg/policy"
	"github.com/badgecollector/badgecollector/pkg/report"
)

func newRunCommand() *cobra.Command {
	var (
		account          string
		phases           []int
		retryInterrupted bool
		events           bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Work through the catalog phase by phase",
		Long: `Run every registered handler in ascending phase order.

Before a handler is invoked its eligible targets are marked attempting, so an
interrupted run leaves a visible trace. Handlers whose required capabilities
are missing are denied by the policy gate and their targets are skipped with
the reason. Handler failures never stop the run; only unreadable progress
does.`,
		Example: `  # Run every phase
  badges run

  # Only the competition phase, for a specific account
  badges run --phase 2 --account jane

  # Retry achievements stranded in attempting by a crashed run
  badges run --retry-interrupted`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, appOptions{events: events})
			if err != nil {
				return err
			}
			defer a.Close(ctx)
			cfg := a.cfg
			logger := a.logger

			acct, err := actions.CredentialSource{}.ResolveAccount(account, cfg.Account)
			if errors.Is(err, actions.ErrNoAccount) {
				log.Warn().Msg("No account configured; handlers that need one will be denied or fail")
			} else if err != nil {
				return err
			}

			caps := actions.DetectCapabilities(cfg.CLI.Binary, cfg.Browser.Enabled, cfg.Browser.Bin)
			log.Info().Strs("capabilities", caps.Names()).Msg("Detected capabilities")

			gate, err := policy.NewEngine(ctx, caps, logger)
			if err != nil {
				return err
			}
			if err := gate.LoadPolicies(ctx, cfg.Policies); err != nil {
				return err
			}

			cli := actions.NewCLI(actions.CLIOptions{
				Binary:  cfg.CLI.Binary,
				Timeout: cfg.CLI.Timeout.Std(),
				Delay:   cfg.CLI.Delay.Std(),
			}, logger)

			env := actions.Env{
				CLI:          cli,
				TemplatesDir: cfg.TemplatesDir,
				WorkDir:      cfg.WorkDir,
				Profile:      actions.Profile{Bio: cfg.Browser.Profile.Bio, Location: cfg.Browser.Profile.Location},
			}
			if caps.Has(engine.CapabilityBrowser) {
				browser := actions.NewRodBrowser(actions.BrowserOptions{
					Bin:               cfg.Browser.Bin,
					Headless:          cfg.Browser.Headless,
					UserDataDir:       cfg.Browser.UserDataDir,
					NavigationTimeout: cfg.Browser.NavigationTimeout.Std(),
				}, logger)
				defer func() {
					if err := browser.Close(); err != nil {
						log.Warn().Err(err).Msg("Failed to close browser")
					}
				}()
				env.Browser = browser
			}

			scripts, err := actions.ScriptHandlers(cfg.Scripts, actions.ScriptOptions{
				CLI:     cli,
				WorkDir: cfg.WorkDir,
			})
			if err != nil {
				return err
			}

			reg := engine.NewRegistry(a.catalog)
			if err := reg.RegisterAll(actions.DefaultHandlers(env)...); err != nil {
				return err
			}
			if err := reg.RegisterAll(scripts...); err != nil {
				return err
			}

			if a.telemetry.Metrics.Enabled() && cfg.Telemetry.MetricsListen != "" {
				go func() {
					if err := a.telemetry.Metrics.StartMetricsServer(ctx); err != nil {
						log.Error().Err(err).Msg("Metrics server stopped")
					}
				}()
			}

			opts := []engine.OrchestratorOption{
				engine.WithGate(gate),
				engine.WithTracer(a.telemetry.Tracer),
				engine.WithLogger(logger),
				engine.WithRunObserver(a.telemetry.Metrics),
				engine.WithRunObserver(a.telemetry.Events),
			}
			if a.history != nil {
				opts = append(opts, engine.WithRunObserver(a.history))
			}
			tracker := a.tracker()
			orch := engine.NewOrchestrator(reg, tracker, opts...)

			log.Info().
				Str("account", acct).
				Ints("phases", phases).
				Int("handlers", reg.Len()).
				Msg("Starting run")

			summary, runErr := orch.Run(ctx, engine.RunOptions{
				Account:          acct,
				Phases:           phases,
				RetryInterrupted: retryInterrupted || cfg.RetryInterrupted,
			})

			if p, err := tracker.Snapshot(ctx); err == nil {
				a.telemetry.Metrics.SetAchievementCounts(report.Build(a.catalog, p, time.Now()).Counts)
			}

			if summary != nil {
				if err := printSummary(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
				if summary.Interrupted {
					log.Warn().Msg("Run interrupted; remaining handlers were not started and a cancelled handler's targets are marked failed")
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "platform account (default from config, KAGGLE_USERNAME or ~/.kaggle/kaggle.json)")
	cmd.Flags().IntSliceVar(&phases, "phase", nil, "only run the given phase (repeatable)")
	cmd.Flags().BoolVar(&retryInterrupted, "retry-interrupted", false, "treat achievements left in attempting as eligible")
	cmd.Flags().BoolVar(&events, "events", false, "stream run events as JSON lines on stderr")

	return cmd
}

func printSummary(w io.Writer, s *engine.RunSummary) error {
	if jsonOutput {
		return writeJSON(w, s)
	}

	fmt.Fprintf(w, "\nRun %s finished in %s\n", s.RunID, s.CompletedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  Handlers attempted: %d, succeeded: %d, failed: %d\n", s.Attempted, s.Succeeded, s.Failed())

	seen := map[int]bool{}
	for _, r := range s.Results {
		if seen[r.Phase] {
			continue
		}
		seen[r.Phase] = true
		attempted, succeeded := s.PhaseCounts(r.Phase)
		fmt.Fprintf(w, "  Phase %d: %d/%d\n", r.Phase, succeeded, attempted)
	}

	for _, r := range s.Results {
		line := fmt.Sprintf("    %-9s %s", r.Outcome, r.Name)
		if r.Detail != "" {
			line += " (" + r.Detail + ")"
		}
		fmt.Fprintln(w, line)
	}
	if s.Interrupted {
		fmt.Fprintln(w, "  Interrupted before all handlers ran.")
	}
	return nil
}

