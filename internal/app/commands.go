package app

import (
	"fmt"

	"sunday-scrims/internal/config"

	"github.com/spf13/cobra"
)

func newVersionCmd(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sunday-scrims version %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Date: %s\n", date)
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	var format string
	var path string

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write an example sunday-scrims config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = "sunday-scrims." + format
			}
			if err := config.GenerateExample(path, format); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "yml", "config format (yml or toml)")
	cmd.Flags().StringVar(&path, "path", "", "output file (default sunday-scrims.<format>)")
	return cmd
}
