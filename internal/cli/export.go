package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"dcvisitor/internal/export"
	"dcvisitor/internal/logging"
)

func newExportCmd() *cobra.Command {
	var (
		filters filterFlags
		photos  bool
		dir     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered visitor list to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			if dir == "" {
				dir = deps.Cfg.ExportDir
			}
			loc := deps.Visitors.Location()
			crit, err := filters.criteria(loc)
			if err != nil {
				return err
			}
			records, err := deps.Visitors.List(cmd.Context(), crit)
			if err != nil {
				return err
			}

			target := export.FileDeliverer{Dir: dir}
			exp := export.NewExporter(loc, logging.NewWithOutput(cmd.ErrOrStderr(), "dcv", deps.Cfg.Env))
			res, err := exp.Export(cmd.Context(), records, export.Options{IncludePhotos: photos, Criteria: crit}, target, export.TargetFile)
			if err != nil {
				return err
			}
			written := filepath.Join(dir, res.Filename)

			if isJSON() {
				return printJSON(cmd, map[string]interface{}{"path": written, "rows": res.Rows, "bytes": res.Bytes})
			}
			printf(cmd, "Exported %d visitors to %s\n", res.Rows, written)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().BoolVar(&photos, "photos", false, "include the photo URL column")
	cmd.Flags().StringVar(&dir, "out", "", "output directory (default: $EXPORT_DIR)")
	return cmd
}
