package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PascalRepond/rero-mef/internal/repository"
)

func newDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the record database",
	}
	cmd.AddCommand(newDBInitCommand())
	return cmd
}

func newDBInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the record tables, sequences and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := repository.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer repo.Close()

			if err := repo.InitSchema(ctx, force); err != nil {
				return err
			}
			logger.Info("database schema initialized", "force", force)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "drop existing record tables first")
	return cmd
}
