package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PascalRepond/rero-mef/internal/cache"
)

func newUtilsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "utils",
		Short: "Maintenance helpers",
	}
	cmd.AddCommand(newUtilsFlushCacheCommand())
	return cmd
}

func newUtilsFlushCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flush-cache",
		Short: "Drop all cached record documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			cacheClient, err := cache.New(cmd.Context(), cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer cacheClient.Close()

			count, err := cacheClient.Flush(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("%d cached records flushed\n", count)
			return nil
		},
	}
}
