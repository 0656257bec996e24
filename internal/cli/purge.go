package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

const confirmPhrase = "DELETE"

func newPurgeCmd() *cobra.Command {
	var (
		olderThanDays int
		all           bool
		confirm       string
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete old visitor records, or all of them",
		Long:  "Delete records created more than --older-than-days ago (default $RETENTION_DAYS), or every record with --all --confirm DELETE.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && confirm != confirmPhrase {
				return errors.New("--all deletes every visitor record; pass --confirm DELETE to proceed")
			}
			if !all && cmd.Flags().Changed("older-than-days") && olderThanDays < 1 {
				return fmt.Errorf("--older-than-days must be at least 1, got %d", olderThanDays)
			}

			deps, err := openDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			var n int64
			if all {
				n, err = deps.Visitors.ClearAll(cmd.Context())
			} else {
				if !cmd.Flags().Changed("older-than-days") {
					olderThanDays = deps.Cfg.RetentionDays
				}
				n, err = deps.Visitors.ClearOlderThan(cmd.Context(), olderThanDays)
			}
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(cmd, map[string]interface{}{"deleted": n})
			}
			printf(cmd, "Deleted %d visitor records.\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThanDays, "older-than-days", 0, "delete records created more than this many days ago")
	cmd.Flags().BoolVar(&all, "all", false, "delete every record")
	cmd.Flags().StringVar(&confirm, "confirm", "", "type DELETE to confirm --all")
	return cmd
}
