package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ops-agent/internal/application/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ops-agent version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return errWantedNoArgs
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}
