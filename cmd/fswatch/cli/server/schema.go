package server

import (
	"context"
	"fmt"

	"github.com/fiacre/fswatch/internal/agent"
	"github.com/spf13/cobra"

	config "github.com/fiacre/fswatch/internal/config/server"
)

func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Initialize the field mapping of the search application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			return agent.NewAgent(cfg).InitSchema(context.Background())
		},
	}
}
