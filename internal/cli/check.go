package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/speechgate/internal/gateway"
	"github.com/kbukum/speechgate/openai"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if backends := gateway.Backends(); !backends.Has(cfg.Transcription.Backend) {
				return fmt.Errorf("invalid configuration: transcription.backend %q is not registered (available: %v)",
					cfg.Transcription.Backend, backends.List())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration ok\n")
			fmt.Fprintf(out, "  listen:   %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Fprintf(out, "  route:    POST %s%s\n", cfg.Transcription.APIPrefix, openai.TranscriptionsPath)
			fmt.Fprintf(out, "  backend:  %s\n", cfg.Transcription.Backend)
			fmt.Fprintf(out, "  workers:  %d\n", cfg.Scheduler.Workers)
			return nil
		},
	}
}
