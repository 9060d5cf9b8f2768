package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/badgecollector/badgecollector/pkg/engine"
	"github.com/badgecollector/badgecollector/pkg/stores"
)

func newRestoreCommand() *cobra.Command {
	var remote remoteFlags

	cmd := &cobra.Command{
		Use:   "restore [backup-file]",
		Short: "Restore campaign progress from a backup",
		Long: `Replace the progress store with the content of a backup.

Either backend's backups can be restored into either backend. The backup is
decoded and validated before anything is replaced, so a damaged backup leaves
current progress untouched. Run history is not restored.`,
		Example: `  # From a local file
  badges restore badge_progress.json.20260601T100000Z.bak

  # From a remote copy
  badges restore --remote jane@nas.local:/srv/backups/badges.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (remote.target != "") {
				return errors.New("pass either a backup file or --remote")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			out := cmd.OutOrStdout()
			src := ""
			if len(args) == 1 {
				src = args[0]
			} else {
				dir, err := os.MkdirTemp("", "badges-restore-*")
				if err != nil {
					return fmt.Errorf("failed to create temp dir: %w", err)
				}
				defer os.RemoveAll(dir)

				client, r, err := remote.dial(ctx, a.logger)
				if err != nil {
					return err
				}
				defer client.Close()

				src = filepath.Join(dir, "backup")
				res, err := client.Download(ctx, r.Path, src)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Downloaded %d bytes from %s (sha256 %s)\n", res.BytesTransferred, r, res.Checksum)
			}

			log.Info().Str("from", src).Str("to", a.cfg.Progress.Path).Msg("Restoring progress")

			p, err := stores.ReadBackup(ctx, src, a.catalog.IDs(), a.logger)
			if err != nil {
				return err
			}
			if err := a.store.Save(ctx, p); err != nil {
				return fmt.Errorf("failed to write progress: %w", err)
			}

			earned := 0
			for _, id := range a.catalog.IDs() {
				if p.StatusOf(id) == engine.StatusEarned {
					earned++
				}
			}
			fmt.Fprintf(out, "✓ Restored %d records into %s (%d/%d earned)\n",
				len(p), a.cfg.Progress.Path, earned, a.catalog.Len())
			return nil
		},
	}

	remote.register(cmd, "download from")

	return cmd
}
