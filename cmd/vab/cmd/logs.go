package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vabrowser/vab/internal/logging"
)

type logsOptions struct {
	follow      bool
	tailLines   int
	levelFilter string
	grep        string
	plain       bool
	file        string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View vab logs",
		Long: `View and tail vab logs.

Shows the last 50 lines of the log file by default; -f streams entries as
they are written.

Examples:
  vab logs                 # Show last 50 lines
  vab logs -n 100          # Show last 100 lines
  vab logs -f              # Stream new entries
  vab logs --level error   # Show only error logs
  vab logs --filter index  # Filter by pattern`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Stream new log entries")
	cmd.Flags().IntVarP(&opts.tailLines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.levelFilter, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.grep, "filter", "", "Filter by keyword/pattern (regex)")
	cmd.Flags().BoolVar(&opts.plain, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path to log file")

	return cmd
}

func runLogs(ctx context.Context, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.file)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.grep != "" {
		if pattern, err = regexp.Compile(opts.grep); err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.levelFilter,
		Pattern: pattern,
		NoColor: opts.plain,
	}, os.Stdout)

	fmt.Fprintf(os.Stderr, "Log file: %s\n", path)
	if opts.follow {
		fmt.Fprintln(os.Stderr, "Following... (Ctrl+C to stop)")
		fmt.Fprintln(os.Stderr, "---")
		return streamLogs(ctx, viewer, path)
	}
	fmt.Fprintln(os.Stderr, "---")

	entries, err := viewer.Tail(path, opts.tailLines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

func streamLogs(ctx context.Context, viewer *logging.Viewer, path string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	entries := make(chan logging.LogEntry, 100)
	done := make(chan error, 1)
	go func() { done <- viewer.Follow(ctx, path, entries) }()

	for {
		select {
		case e := <-entries:
			fmt.Println(viewer.FormatEntry(e))
		case err := <-done:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
