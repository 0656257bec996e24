package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dcvisitor/internal/visitor"
)

const listTimeLayout = "2006-01-02 15:04"

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatStay renders a stay as "3h 05m"; visitors still on site show "on site".
func formatStay(r visitor.Record) string {
	if r.ExitAt == nil {
		return "on site"
	}
	d := r.ExitAt.Sub(r.EntryAt).Round(time.Minute)
	return fmt.Sprintf("%dh %02dm", int(d.Hours()), int(d.Minutes())%60)
}

func printVisitorTable(cmd *cobra.Command, records []visitor.Record, loc *time.Location) error {
	if len(records) == 0 {
		printf(cmd, "No visitors found.\n")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tNAME\tNRC\tCOMPANY\tIN\tOUT\tSTAY"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, r := range records {
		out := "-"
		if r.ExitAt != nil {
			out = r.ExitAt.In(loc).Format(listTimeLayout)
		}
		company := r.Company
		if company == "" {
			company = "-"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.NationalID, company, r.EntryAt.In(loc).Format(listTimeLayout), out, formatStay(r)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
