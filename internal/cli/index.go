package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PascalRepond/rero-mef/internal/cache"
	"github.com/PascalRepond/rero-mef/internal/index"
	"github.com/PascalRepond/rero-mef/internal/metrics"
	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/repository"
)

func newIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the search indices",
	}
	cmd.AddCommand(newIndexReindexCommand(), newIndexRunCommand())
	return cmd
}

func newIndexReindexCommand() *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Enqueue every record of the given types for indexing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var entities []model.Entity
			for _, name := range types {
				if name == "all" {
					entities = model.AllEntities
					break
				}
				e, err := model.ParseEntity(name)
				if err != nil {
					return err
				}
				entities = append(entities, e)
			}
			if len(entities) == 0 {
				return errors.New("no record types given")
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := repository.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer repo.Close()
			cacheClient, err := cache.New(ctx, cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer cacheClient.Close()

			publisher := index.NewPublisher(cacheClient.Client(), logger)
			for _, e := range entities {
				count, err := publisher.EnqueueAll(ctx, repo.Records(e))
				if err != nil {
					return fmt.Errorf("reindex %s: %w", e, err)
				}
				cmd.Printf("%s: %d records enqueued\n", e, count)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "record types to reindex, or \"all\"")
	cmd.MarkFlagRequired("type")
	return cmd
}

func newIndexRunCommand() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the index worker until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			repo, err := repository.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer repo.Close()
			cacheClient, err := cache.New(ctx, cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer cacheClient.Close()
			search, err := index.NewSearch(cfg.GetElasticsearchAddresses(), logger)
			if err != nil {
				return fmt.Errorf("connect to elasticsearch: %w", err)
			}
			if err := search.Ping(ctx); err != nil {
				return fmt.Errorf("ping elasticsearch: %w", err)
			}

			worker := index.NewWorker(cacheClient.Client(), repo, search,
				logger, index.NewConsumerID(), metrics.NewInMemory())
			if batchSize > 0 {
				worker.SetBatchSize(batchSize)
			}

			err = worker.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return worker.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "tasks per batch")
	return cmd
}
