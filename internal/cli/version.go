package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/speechgate/internal/gateway"
	"github.com/kbukum/speechgate/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", gateway.ServiceName, version.Get())
			return nil
		},
	}
}
