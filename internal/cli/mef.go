package cli

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PascalRepond/rero-mef/internal/fixtures"
	"github.com/PascalRepond/rero-mef/internal/model"
)

func newMEFCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mef",
		Short: "Build MEF bulk files",
	}
	cmd.AddCommand(newMEFCreateFilesCommand())
	return cmd
}

func newMEFCreateFilesCommand() *cobra.Command {
	var (
		dir     string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "create-files",
		Short: "Build the MEF COPY files from the loaded bulk files",
		Long: "Build the MEF COPY files out of the viaf metadata COPY file\n" +
			"and the agent pidstore files in the same directory. Every\n" +
			"loaded agent ends up referenced by exactly one MEF record.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = os.Getenv("BASE_URL")
			}
			if baseURL == "" {
				baseURL = "http://localhost:8080"
			}

			_, viafMetaPath := csvPaths(dir, model.EntityViaf)
			viafMeta, err := os.Open(viafMetaPath)
			if err != nil {
				return fmt.Errorf("open viaf metadata file: %w", err)
			}
			defer viafMeta.Close()

			agentPids := map[model.Entity]map[string]bool{}
			for _, e := range model.AgentEntities {
				pidPath, _ := csvPaths(dir, e)
				f, err := os.Open(pidPath)
				if err != nil {
					if os.IsNotExist(err) {
						continue
					}
					return fmt.Errorf("open %s pidstore file: %w", e, err)
				}
				pids, err := fixtures.ReadPidSet(bufio.NewReaderSize(f, 1<<20))
				f.Close()
				if err != nil {
					return fmt.Errorf("read %s pidstore file: %w", e, err)
				}
				agentPids[e] = pids
			}

			pidPath, metaPath := csvPaths(dir, model.EntityMef)
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

			count, err := fixtures.CreateMEFFiles(
				bufio.NewReaderSize(viafMeta, 1<<20),
				agentPids, pidFile, metaFile, baseURL, time.Now())
			if err != nil {
				return err
			}
			cmd.Printf("%d mef records written to %s\n", count, dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory holding the bulk files")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL for $ref links (default from BASE_URL)")
	return cmd
}
