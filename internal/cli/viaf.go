package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PascalRepond/rero-mef/internal/cache"
	"github.com/PascalRepond/rero-mef/internal/fixtures"
	"github.com/PascalRepond/rero-mef/internal/index"
	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/repository"
	"github.com/PascalRepond/rero-mef/internal/service"
	"github.com/PascalRepond/rero-mef/internal/viaf"
)

func newViafCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viaf",
		Short: "Build VIAF bulk files and query viaf.org",
	}
	cmd.AddCommand(
		newViafCreateFilesCommand(),
		newViafGetCommand(),
	)
	return cmd
}

func newViafGetCommand() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "get <pid>",
		Short: "Fetch a cluster from viaf.org by VIAF pid",
		Long: "Fetch a cluster from viaf.org by VIAF pid and print it as JSON.\n" +
			"--save reconciles the aggregation against the fetched cluster,\n" +
			"refreshing stale memberships.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			client := viaf.NewClient(logger, cfg.ViafBaseURL)
			rec, err := client.GetByPid(ctx, args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("viaf cluster %s not found", args[0])
			}
			raw, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(raw))
			if !save {
				return nil
			}

			repo, err := repository.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer repo.Close()

			var queue service.IndexQueue
			cacheClient, err := cache.New(ctx, cfg.RedisURL)
			if err != nil {
				logger.Warn("redis unavailable, indexing disabled",
					"error", sanitizeError(err, cfg.RedisURL))
			} else {
				defer cacheClient.Close()
				queue = index.NewPublisher(cacheClient.Client(), logger)
			}

			mefService := service.NewMEFService(repo, client, cacheClient, queue, nil, logger, cfg.BaseURL)
			actions, err := mefService.Reconcile(ctx, rec)
			if err != nil {
				return err
			}
			for ref, action := range actions {
				cmd.Printf("%s: %s\n", ref, action)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "reconcile the aggregation against the fetched cluster")
	return cmd
}

func newViafCreateFilesCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "create-files <clusters-dump>",
		Short: "Turn a VIAF clusters dump into Postgres COPY files",
		Long: "Turn a VIAF clusters dump (sorted, one membership per line)\n" +
			"into the viaf COPY file pair. Clusters touching none of the\n" +
			"known sources are skipped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dump, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open viaf dump: %w", err)
			}
			defer dump.Close()

			pidPath, metaPath := csvPaths(dir, model.EntityViaf)
			pidFile, err := os.Create(pidPath)
			if err != nil {
				return err
			}
			defer pidFile.Close()
			metaFile, err := os.Create(metaPath)
			if err != nil {
				return err
			}
			defer metaFile.Close()

			count, err := fixtures.CreateViafFiles(
				bufio.NewReaderSize(dump, 1<<20), pidFile, metaFile, time.Now())
			if err != nil {
				return err
			}
			cmd.Printf("%d viaf clusters written to %s\n", count, dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory for the COPY files")
	return cmd
}
