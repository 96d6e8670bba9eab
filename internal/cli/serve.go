package cli

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/speechgate/bootstrap"
	"github.com/kbukum/speechgate/internal/gateway"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the transcription gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return err
			}
			if _, err := gateway.Build(app, gateway.Backends()); err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}
