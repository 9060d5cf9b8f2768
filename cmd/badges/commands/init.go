package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/badgecollector/badgecollector/pkg/actions"
	"github.com/badgecollector/badgecollector/pkg/config"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a badge campaign in the current directory",
		Long: `Write a commented default configuration, starter scripts for the phase 1
API badges and an initial progress store with every achievement pending. An
existing configuration or script is kept unless --force is given; existing
progress is never discarded.`,
		Example: `  # Start a campaign here
  badges init

  # Overwrite the config but keep progress
  badges init --force

  # Initialize somewhere else
  badges init -c ~/campaigns/kaggle/badges.cue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			path := resolvedConfigPath()

			log.Info().Str("config", path).Bool("force", force).Msg("Initializing campaign")

			_, err := os.Stat(path)
			switch {
			case err == nil && !force:
				fmt.Fprintf(out, "✓ Keeping existing config file: %s\n", path)
			case err == nil || errors.Is(err, fs.ErrNotExist):
				if dir := filepath.Dir(path); dir != "." {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return fmt.Errorf("failed to create directory %s: %w", dir, err)
					}
				}
				if err := os.WriteFile(path, []byte(config.DefaultFile), 0o644); err != nil {
					return fmt.Errorf("failed to write config file: %w", err)
				}
				fmt.Fprintf(out, "✓ Created config file: %s\n", path)
			default:
				return fmt.Errorf("failed to stat %s: %w", path, err)
			}

			scripts, err := actions.WriteStarterScripts(filepath.Join(filepath.Dir(path), "scripts"), force)
			if err != nil {
				return fmt.Errorf("failed to write starter scripts: %w", err)
			}
			for _, s := range scripts {
				fmt.Fprintf(out, "✓ Created script: %s\n", s)
			}

			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			for _, dir := range []string{a.cfg.TemplatesDir, a.cfg.WorkDir} {
				if dir == "" {
					continue
				}
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
				fmt.Fprintf(out, "✓ Created directory: %s\n", dir)
			}

			// Load fills missing ids with pending and keeps what is there.
			p, err := a.store.Load(ctx)
			if err != nil {
				return err
			}
			if err := a.store.Save(ctx, p); err != nil {
				return fmt.Errorf("failed to write progress: %w", err)
			}
			fmt.Fprintf(out, "✓ Initialized %s progress: %s (%d achievements)\n",
				a.cfg.Progress.Backend, a.cfg.Progress.Path, len(p))

			if a.history != nil {
				fmt.Fprintf(out, "✓ Initialized run history: %s\n", a.cfg.History.Path)
			}

			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintf(out, "  1. Set account in %s or export KAGGLE_USERNAME\n", path)
			fmt.Fprintln(out, "  2. badges validate")
			fmt.Fprintln(out, "  3. badges run")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}
