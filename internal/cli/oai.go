package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/oai"
	"github.com/PascalRepond/rero-mef/internal/repository"
)

func newOAICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oai",
		Short: "Manage OAI-PMH harvest sources",
	}
	cmd.AddCommand(
		newOAIAddCommand(),
		newOAIInitCommand(),
		newOAIInfoCommand(),
		newOAIRemoveCommand(),
		newOAIGetLastRunCommand(),
		newOAISetLastRunCommand(),
	)
	return cmd
}

// withRepository connects to the database for one command run.
func withRepository(cmd *cobra.Command, fn func(repo *repository.Repository) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := repository.New(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer repo.Close()
	return fn(repo)
}

func newOAIAddCommand() *cobra.Command {
	var src model.OAISource

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace one harvest source configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src.Name = args[0]
			return withRepository(cmd, func(repo *repository.Repository) error {
				if err := repo.UpsertOAISource(cmd.Context(), src); err != nil {
					return err
				}
				cmd.Printf("source %s configured\n", src.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&src.BaseURL, "url", "", "OAI-PMH endpoint URL")
	cmd.Flags().StringVar(&src.MetadataPrefix, "prefix", "marcxml", "metadata prefix")
	cmd.Flags().StringVar(&src.SetSpecs, "set", "", "set specification")
	cmd.Flags().StringVar(&src.Comment, "comment", "", "free form comment")
	cmd.MarkFlagRequired("url")
	return cmd
}

func newOAIInitCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Load harvest source configurations from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.OAISourcesFile
			}
			sources, err := oai.LoadSourcesFile(file)
			if err != nil {
				return err
			}
			repo, err := repository.New(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer repo.Close()

			for _, src := range sources {
				if err := repo.UpsertOAISource(cmd.Context(), src); err != nil {
					return err
				}
			}
			cmd.Printf("%d sources configured\n", len(sources))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "sources YAML file (default from OAI_SOURCES_FILE)")
	return cmd
}

func newOAIInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "List the configured harvest sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, func(repo *repository.Repository) error {
				sources, err := repo.ListOAISources(cmd.Context())
				if err != nil {
					return err
				}
				for _, src := range sources {
					lastRun := "never"
					if !src.LastRun.IsZero() {
						lastRun = src.LastRun.UTC().Format(time.RFC3339)
					}
					cmd.Printf("%s\n", src.Name)
					cmd.Printf("  url:      %s\n", src.BaseURL)
					cmd.Printf("  prefix:   %s\n", src.MetadataPrefix)
					if src.SetSpecs != "" {
						cmd.Printf("  set:      %s\n", src.SetSpecs)
					}
					if src.Comment != "" {
						cmd.Printf("  comment:  %s\n", src.Comment)
					}
					cmd.Printf("  last run: %s\n", lastRun)
				}
				return nil
			})
		},
	}
}

func newOAIRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove one harvest source configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, func(repo *repository.Repository) error {
				if err := repo.DeleteOAISource(cmd.Context(), args[0]); err != nil {
					return err
				}
				cmd.Printf("source %s removed\n", args[0])
				return nil
			})
		},
	}
}

func newOAIGetLastRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-last-run <name>",
		Short: "Print the last harvest time of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, func(repo *repository.Repository) error {
				src, err := repo.GetOAISource(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if src.LastRun.IsZero() {
					cmd.Println("never")
					return nil
				}
				cmd.Println(src.LastRun.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
}

func newOAISetLastRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-last-run <name> <date>",
		Short: "Move the last harvest time of a source",
		Long:  "Move the last harvest time of a source. The date is RFC 3339\nor a bare YYYY-MM-DD day.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lastRun, err := parseDateFlag(args[1])
			if err != nil {
				return err
			}
			return withRepository(cmd, func(repo *repository.Repository) error {
				if err := repo.SetOAILastRun(cmd.Context(), args[0], lastRun); err != nil {
					return err
				}
				cmd.Printf("last run of %s set to %s\n", args[0], lastRun.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
}

// parseDateFlag accepts RFC 3339 timestamps and bare days.
func parseDateFlag(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use RFC 3339 or YYYY-MM-DD", v)
	}
	return t, nil
}
