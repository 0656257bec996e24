package cli

import (
	"time"

	"github.com/spf13/cobra"

	"dcvisitor/internal/visitor"
)

// filterFlags are shared by list and export.
type filterFlags struct {
	status string
	search string
	today  bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.status, "status", "all", "visitor status (all|active|checked_out)")
	cmd.Flags().StringVarP(&f.search, "query", "q", "", "match name, NRC, company or phone")
	cmd.Flags().BoolVar(&f.today, "today", false, "only visitors who entered today")
}

func (f *filterFlags) criteria(loc *time.Location) (visitor.Criteria, error) {
	status, err := visitor.ParseStatus(f.status)
	if err != nil {
		return visitor.Criteria{}, err
	}
	c := visitor.Criteria{Status: status, Search: f.search}
	if f.today {
		day := visitor.DayRange(time.Now(), loc)
		c.Range = &day
	}
	return c, nil
}

func newListCmd() *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visitors",
		Long:  "List visitor records, newest entry first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			loc := deps.Visitors.Location()
			crit, err := filters.criteria(loc)
			if err != nil {
				return err
			}
			records, err := deps.Visitors.List(cmd.Context(), crit)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd, records)
			}
			return printVisitorTable(cmd, records, loc)
		},
	}
	filters.register(cmd)
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show total, on-site and today's visitor counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			st, err := deps.Visitors.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd, st)
			}
			printf(cmd, "Total visitors:   %d\n", st.Total)
			printf(cmd, "Currently inside: %d\n", st.Active)
			printf(cmd, "Today (%s): %d\n", st.Day, st.Today)
			return nil
		},
	}
}

func newCheckoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <id>",
		Short: "Record a visitor's exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			rec, err := deps.Visitors.Checkout(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd, rec)
			}
			printf(cmd, "%s checked out after %s.\n", rec.Name, formatStay(*rec))
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete one visitor record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			if err := deps.Visitors.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd, map[string]interface{}{"id": args[0], "removed": true})
			}
			printf(cmd, "Visitor %s removed.\n", args[0])
			return nil
		},
	}
}
