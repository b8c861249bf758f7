package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PascalRepond/rero-mef/internal/fixtures"
	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/repository"
)

func newExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <entity>",
		Short: "Export every record of an entity as a JSON dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := model.ParseEntity(args[0])
			if err != nil {
				return err
			}
			w, err := openOutput(out)
			if err != nil {
				return err
			}
			defer closeOutput(w)

			return withRepository(cmd, func(repo *repository.Repository) error {
				jw := fixtures.NewJSONArrayWriter(w)
				err := repo.Records(e).AllRecords(cmd.Context(), func(rec model.Record) error {
					return jw.Write(rec)
				})
				if err != nil {
					return err
				}
				if err := jw.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d %s records exported\n", jw.Count(), e)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}
