// Package export renders visitor records as CSV and delivers the file.
package export

import (
	"strconv"
	"strings"
	"time"

	"dcvisitor/internal/visitor"
)

// TimeLayout formats every timestamp column.
const TimeLayout = "2006-01-02 15:04:05"

var header = []string{
	"ID",
	"Name",
	"NRC Number",
	"Phone Number",
	"Company Name",
	"Visit Purpose",
	"Employee Card Number",
	"Access Container No",
	"Access Rack No",
	"Inventory List",
	"Entry Time",
	"Exit Time",
	"Duration (Hours)",
	"Status",
	"Created At",
	"Updated At",
}

const photoColumn = "Photo URL"

// Options select the exported subset and columns.
type Options struct {
	IncludePhotos bool
	Criteria      visitor.Criteria
}

// Render filters records by opts.Criteria and returns the CSV text and the
// number of data rows. Rows keep the input order and the input is not modified.
func Render(records []visitor.Record, opts Options, loc *time.Location) (string, int) {
	if loc == nil {
		loc = time.UTC
	}
	kept := opts.Criteria.Apply(records)

	cols := header
	if opts.IncludePhotos {
		cols = append(append([]string(nil), header...), photoColumn)
	}

	lines := make([]string, 0, len(kept)+1)
	lines = append(lines, strings.Join(cols, ","))
	for _, r := range kept {
		lines = append(lines, row(r, opts.IncludePhotos, loc))
	}
	return strings.Join(lines, "\n"), len(kept)
}

func row(r visitor.Record, photos bool, loc *time.Location) string {
	exit := "Still in site"
	duration := "N/A"
	status := "In Site"
	if hours, ok := r.StayHours(); ok {
		exit = r.ExitAt.In(loc).Format(TimeLayout)
		duration = strconv.FormatFloat(hours, 'f', 2, 64)
		status = "Checked Out"
	}

	fields := []string{
		r.ID,
		quote(r.Name),
		quote(r.NationalID),
		quote(r.Phone),
		quote(r.Company),
		quote(r.Purpose),
		quote(r.EmployeeCard),
		quote(r.ContainerNo),
		quote(r.RackNo),
		quote(r.Inventory),
		quote(r.EntryAt.In(loc).Format(TimeLayout)),
		quote(exit),
		duration,
		status,
		quote(r.CreatedAt.In(loc).Format(TimeLayout)),
		quote(r.UpdatedAt.In(loc).Format(TimeLayout)),
	}
	if photos {
		fields = append(fields, quote(r.PhotoURL))
	}
	return strings.Join(fields, ",")
}

// quote wraps s in double quotes, doubling any embedded quote.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
