// Package cli implements the speechgate command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/speechgate/config"
	"github.com/kbukum/speechgate/internal/gateway"
	"github.com/kbukum/speechgate/version"
)

type rootOptions struct {
	configFile string
	envFile    string
}

// NewRootCmd builds the speechgate command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           gateway.ServiceName,
		Short:         "OpenAI-compatible speech transcription gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Get().Short(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to config.yml (default: searched under ./cmd/speechgate, ./config, .)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file loaded before the environment")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// load reads and validates the gateway configuration.
func (o *rootOptions) load() (*gateway.Config, error) {
	var loaderOpts []config.LoaderOption
	if o.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(o.configFile))
	}
	if o.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(o.envFile))
	}

	cfg := &gateway.Config{}
	if err := config.LoadConfig(gateway.ServiceName, cfg, loaderOpts...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
