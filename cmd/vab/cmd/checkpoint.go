package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vabrowser/vab/internal/store"
)

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Show the committed indexing checkpoint",
		Long: `Show the high-water mark of the indexing pipeline.

The checkpoint is the instant up to which catalog changes have been
embedded and committed to the vector index. The next 'vab index' run
picks up rows changed after this point.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckpointShow(cmd)
		},
	}

	cmd.AddCommand(newCheckpointResetCmd())
	return cmd
}

func newCheckpointResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the checkpoint so the next run reindexes everything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := cfg.CheckpointPath()
			if err := os.Remove(path); err != nil {
				if os.IsNotExist(err) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No checkpoint to reset")
					return nil
				}
				return fmt.Errorf("removing checkpoint %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s removed; next index run starts from scratch\n", path)
			return nil
		},
	}
}

func runCheckpointShow(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cp, err := store.NewFileCheckpoint(cfg.CheckpointPath()).Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !cp.After(time.Unix(0, 0).UTC()) {
		_, _ = fmt.Fprintln(out, "Checkpoint: N/A (nothing indexed yet)")
		return nil
	}
	_, _ = fmt.Fprintf(out, "Checkpoint: %s (%s ago)\n",
		cp.Format(time.RFC3339), time.Since(cp).Round(time.Second))
	return nil
}
