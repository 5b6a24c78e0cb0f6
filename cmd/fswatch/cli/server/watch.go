package server

import (
	"context"
	"fmt"

	"github.com/fiacre/fswatch/internal/agent"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	config "github.com/fiacre/fswatch/internal/config/server"
)

// addInitDirFlag lets -d/--init-dir override watch_dir for cmd.
func addInitDirFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("init-dir", "d", "", "directory to watch (overrides watch_dir)")
}

func loadConfig(cmd *cobra.Command) (*config.BaseServerConfig, error) {
	if flag := cmd.Flags().Lookup("init-dir"); flag != nil {
		if err := viper.BindPFlag("watch_dir", flag); err != nil {
			return nil, fmt.Errorf("failed to bind --init-dir: %w", err)
		}
	}

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load server configuration: %w", err)
	}
	return cfg, nil
}

func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan the watch directory, then deliver changes as they happen",
		Long: `Start the ingestion agent.

The agent first walks the whole watch directory and delivers every file
whose content has not been delivered before. It then keeps running and
delivers files as they are created or modified, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			return agent.NewAgent(cfg).Serve(context.Background())
		},
	}

	addInitDirFlag(cmd)
	return cmd
}
