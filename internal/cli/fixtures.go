package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PascalRepond/rero-mef/internal/cache"
	"github.com/PascalRepond/rero-mef/internal/fixtures"
	"github.com/PascalRepond/rero-mef/internal/index"
	"github.com/PascalRepond/rero-mef/internal/marc"
	"github.com/PascalRepond/rero-mef/internal/metrics"
	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/repository"
	"github.com/PascalRepond/rero-mef/internal/service"
	"github.com/PascalRepond/rero-mef/internal/viaf"
)

func newFixturesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Build and load bulk record files",
	}
	cmd.AddCommand(
		newFixturesMarcToJSONCommand(),
		newFixturesCreateCSVCommand(),
		newFixturesLoadCSVCommand(),
		newFixturesCreateOrUpdateCommand(),
		newFixturesDeleteCommand(),
		newFixturesCSVToJSONCommand(),
		newFixturesCSVDiffCommand(),
	)
	return cmd
}

// bulkSaveBatch bounds the records held back for one BulkSave call.
const bulkSaveBatch = 1000

// agentEntityArg parses and restricts an argument to the agent sources.
func agentEntityArg(name string) (model.Entity, error) {
	e, err := model.ParseEntity(name)
	if err != nil {
		return "", err
	}
	if !e.IsAgent() {
		return "", fmt.Errorf("%w: %q is not an agent source", model.ErrUnknownEntity, e)
	}
	return e, nil
}

// openOutput opens the output file, or stdout when path is empty.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

func closeOutput(w io.WriteCloser) error {
	if w == os.Stdout {
		return nil
	}
	return w.Close()
}

// csvPaths returns the COPY file pair of an entity inside dir.
func csvPaths(dir string, e model.Entity) (pidstore, metadata string) {
	return filepath.Join(dir, string(e)+"_pidstore.csv"),
		filepath.Join(dir, string(e)+"_metadata.csv")
}

// deletedSidecar derives the dump file holding deleted records:
// records.json becomes records_deleted.json.
func deletedSidecar(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_deleted" + ext
}

func newFixturesMarcToJSONCommand() *cobra.Command {
	var (
		out     string
		errPath string
	)

	cmd := &cobra.Command{
		Use:   "marc-to-json <source> <marcxml-file>",
		Short: "Transform a MARCXML dump into a JSON record dump",
		Long: "Transform a MARCXML dump into a JSON record dump. Deleted\n" +
			"source records go to a *_deleted.json file next to the output;\n" +
			"records the transformer rejects can be kept with --error-file.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := agentEntityArg(args[0])
			if err != nil {
				return err
			}
			transformer, err := marc.TransformerFor(e)
			if err != nil {
				return err
			}
			logger := fileLogger()

			in, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open marcxml dump: %w", err)
			}
			defer in.Close()

			liveFile, err := os.Create(out)
			if err != nil {
				return err
			}
			defer liveFile.Close()
			deletedFile, err := os.Create(deletedSidecar(out))
			if err != nil {
				return err
			}
			defer deletedFile.Close()

			var errs *marc.Writer
			if errPath != "" {
				errFile, err := os.Create(errPath)
				if err != nil {
					return err
				}
				defer errFile.Close()
				errs = marc.NewWriter(errFile)
			}

			live := fixtures.NewJSONArrayWriter(liveFile)
			deleted := fixtures.NewJSONArrayWriter(deletedFile)
			res, err := marc.TransformDump(transformer,
				bufio.NewReaderSize(in, 1<<20), live.Write, deleted.Write, errs, logger)
			if err != nil {
				return err
			}
			if err := live.Close(); err != nil {
				return err
			}
			if err := deleted.Close(); err != nil {
				return err
			}
			if errs != nil {
				if err := errs.Close(); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(),
				"%d records transformed, %d deleted, %d duplicates, %d errors\n",
				res.Created, res.Deleted, res.Duplicates, res.Errors)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file for live records")
	cmd.Flags().StringVar(&errPath, "error-file", "", "MARCXML file for untransformable records")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newFixturesCreateCSVCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "create-csv <entity> <dump.json>",
		Short: "Turn a JSON record dump into Postgres COPY files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := model.ParseEntity(args[0])
			if err != nil {
				return err
			}

			pidPath, metaPath := csvPaths(dir, e)
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

			cw := fixtures.NewCSVWriter(pidFile, metaFile, time.Now())
			err = fixtures.ReadJSONFile(args[1], func(rec model.Record) error {
				if _, err := rec.AddMD5(); err != nil {
					return err
				}
				return cw.Write(rec)
			})
			if err != nil {
				return err
			}
			cmd.Printf("%d %s records written to %s\n", cw.Count(), e, dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory for the COPY files")
	return cmd
}

func newFixturesLoadCSVCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "load-csv <entity>",
		Short: "Bulk load the COPY files of one entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := model.ParseEntity(args[0])
			if err != nil {
				return err
			}
			pidPath, metaPath := csvPaths(dir, e)
			pidFile, err := os.Open(pidPath)
			if err != nil {
				return err
			}
			defer pidFile.Close()
			metaFile, err := os.Open(metaPath)
			if err != nil {
				return err
			}
			defer metaFile.Close()

			return withRepository(cmd, func(repo *repository.Repository) error {
				count, err := repo.LoadCSV(cmd.Context(), e,
					bufio.NewReaderSize(pidFile, 1<<20),
					bufio.NewReaderSize(metaFile, 1<<20))
				if err != nil {
					return err
				}
				// Loaded MEF records bring their own pids; the sequence
				// has to move past them.
				if e == model.EntityMef {
					maxPid, err := repo.MaxPid(cmd.Context(), e)
					if err != nil {
						return err
					}
					if maxPid != "" {
						if err := repo.SetMEFPidFloor(cmd.Context(), maxPid); err != nil {
							return err
						}
					}
				}
				cmd.Printf("%d %s records loaded\n", count, e)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory holding the COPY files")
	return cmd
}

func newFixturesCreateOrUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-or-update <entity> <dump.json>",
		Short: "Save a JSON record dump through the aggregation rules",
		Long: "Save a JSON record dump through the aggregation rules: agent\n" +
			"records keep their MEF record in step, VIAF clusters are\n" +
			"reconciled against the existing aggregation.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := model.ParseEntity(args[0])
			if err != nil {
				return err
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

			var queue service.IndexQueue
			cacheClient, err := cache.New(ctx, cfg.RedisURL)
			if err != nil {
				logger.Warn("redis unavailable, indexing disabled",
					"error", sanitizeError(err, cfg.RedisURL))
			} else {
				defer cacheClient.Close()
				queue = index.NewPublisher(cacheClient.Client(), logger)
			}

			recorder := metrics.NewInMemory()
			viafClient := viaf.NewClient(logger, cfg.ViafBaseURL)
			mefService := service.NewMEFService(repo, viafClient, cacheClient, queue, recorder, logger, cfg.BaseURL)

			counts := map[model.Action]int{}
			// Entities outside the aggregation rules are saved in plain
			// batches.
			var batch []model.Record
			flush := func() error {
				if len(batch) == 0 {
					return nil
				}
				saved, err := repo.BulkSave(ctx, e, batch)
				batch = batch[:0]
				for action, count := range saved {
					counts[action] += count
				}
				return err
			}
			err = fixtures.ReadJSONFile(args[1], func(rec model.Record) error {
				switch {
				case e.IsAgent():
					action, _, err := mefService.SaveAgent(ctx, e, rec)
					if err != nil {
						return err
					}
					counts[action]++
				case e == model.EntityViaf:
					actions, err := mefService.Reconcile(ctx, rec)
					if err != nil {
						return err
					}
					for _, action := range actions {
						counts[action]++
					}
				default:
					batch = append(batch, rec)
					if len(batch) >= bulkSaveBatch {
						return flush()
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if err := flush(); err != nil {
				return err
			}
			for action, count := range counts {
				cmd.Printf("%s: %d\n", action, count)
			}
			return nil
		},
	}
	return cmd
}

func newFixturesDeleteCommand() *cobra.Command {
	var pidFile string

	cmd := &cobra.Command{
		Use:   "delete <entity> [pid...]",
		Short: "Delete records by pid",
		Long: "Delete records by pid, given as arguments or one per line in\n" +
			"--file. VIAF clusters are torn down through the aggregation\n" +
			"rules; other records are soft deleted.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := model.ParseEntity(args[0])
			if err != nil {
				return err
			}
			pids := args[1:]
			if pidFile != "" {
				filePids, err := readPidLines(pidFile)
				if err != nil {
					return err
				}
				pids = append(pids, filePids...)
			}
			if len(pids) == 0 {
				return errors.New("no pids given")
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

			var queue service.IndexQueue
			cacheClient, err := cache.New(ctx, cfg.RedisURL)
			if err != nil {
				logger.Warn("redis unavailable, indexing disabled",
					"error", sanitizeError(err, cfg.RedisURL))
			} else {
				defer cacheClient.Close()
				queue = index.NewPublisher(cacheClient.Client(), logger)
			}

			if e == model.EntityViaf {
				mefService := service.NewMEFService(repo, nil, cacheClient, queue, nil, logger, cfg.BaseURL)
				for _, pid := range pids {
					if err := mefService.DeleteViaf(ctx, pid); err != nil {
						return err
					}
				}
				cmd.Printf("%d viaf clusters deleted\n", len(pids))
				return nil
			}

			deleted := 0
			for _, pid := range pids {
				if err := repo.Records(e).Delete(ctx, pid); err != nil {
					if errors.Is(err, repository.ErrRecordNotFound) {
						logger.Warn("record not found", "entity", string(e), "pid", pid)
						continue
					}
					return err
				}
				deleted++
				if cacheClient != nil {
					if err := cacheClient.DeleteRecord(ctx, e, pid); err != nil {
						logger.Warn("failed to invalidate cached record",
							"entity", string(e), "pid", pid, "error", err)
					}
				}
				if queue != nil {
					if err := queue.EnqueueDelete(ctx, e, pid); err != nil {
						logger.Warn("failed to enqueue record deletion",
							"entity", string(e), "pid", pid, "error", err)
					}
				}
			}
			cmd.Printf("%d %s records deleted\n", deleted, e)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pidFile, "file", "f", "", "file with one pid per line")
	return cmd
}

// readPidLines reads one pid per line, skipping blanks.
func readPidLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}
	defer f.Close()

	var pids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if pid := strings.TrimSpace(scanner.Text()); pid != "" {
			pids = append(pids, pid)
		}
	}
	return pids, scanner.Err()
}

func newFixturesCSVToJSONCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "csv-to-json <metadata.csv>",
		Short: "Turn a metadata COPY file back into a JSON dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			w, err := openOutput(out)
			if err != nil {
				return err
			}
			defer closeOutput(w)

			count, err := fixtures.CSVToJSON(bufio.NewReaderSize(in, 1<<20), w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d records converted\n", count)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newFixturesCSVDiffCommand() *cobra.Command {
	var (
		oldPath string
		newPath string
		dir     string
	)

	cmd := &cobra.Command{
		Use:   "csv-diff",
		Short: "Compare two metadata COPY files by pid",
		Long: "Compare two metadata COPY files by pid and write the added,\n" +
			"changed and deleted records as JSON dumps.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			oldFile, err := os.Open(oldPath)
			if err != nil {
				return err
			}
			defer oldFile.Close()
			newFile, err := os.Open(newPath)
			if err != nil {
				return err
			}
			defer newFile.Close()

			outputs := make([]*os.File, 0, 3)
			for _, name := range []string{"added.json", "changed.json", "deleted.json"} {
				f, err := os.Create(filepath.Join(dir, name))
				if err != nil {
					return err
				}
				defer f.Close()
				outputs = append(outputs, f)
			}

			res, err := fixtures.Diff(
				bufio.NewReaderSize(oldFile, 1<<20),
				bufio.NewReaderSize(newFile, 1<<20),
				outputs[0], outputs[1], outputs[2])
			if err != nil {
				return err
			}
			cmd.Printf("added: %d\nchanged: %d\ndeleted: %d\nunchanged: %d\n",
				res.Added, res.Changed, res.Deleted, res.Unchanged)
			return nil
		},
	}
	cmd.Flags().StringVar(&oldPath, "old", "", "old metadata COPY file")
	cmd.Flags().StringVar(&newPath, "new", "", "new metadata COPY file")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory for the diff output")
	cmd.MarkFlagRequired("old")
	cmd.MarkFlagRequired("new")
	return cmd
}
