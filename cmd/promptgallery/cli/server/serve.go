package server

import (
	"fmt"

	"github.com/mwantia/promptgallery/internal/agent"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	config "github.com/mwantia/promptgallery/internal/config/server"
)

func NewServeCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"agent"},
		Short:   "Start the Prompt Gallery API server",
		Long: `Start the Prompt Gallery API server.

Opens the catalog database, applies pending migrations and serves the
JSON API and the uploaded images until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			gsa := agent.NewAgent(cfg, version)
			return gsa.Serve(cmd.Context())
		},
	}

	cmd.Flags().String("address", "", "address to listen on (overrides http.address)")
	viper.BindPFlag("http.address", cmd.Flags().Lookup("address"))

	return cmd
}
