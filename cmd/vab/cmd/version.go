package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vabrowser/vab/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var (
		asJSON bool
		short  bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print version information including git commit, build date, and Go version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch {
			case short:
				_, err := fmt.Fprintln(out, version.Short())
				return err
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(version.Get())
			default:
				_, err := fmt.Fprintln(out, version.String())
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "Output only the version number")
	return cmd
}
