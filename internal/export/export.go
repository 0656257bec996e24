package export

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"dcvisitor/internal/metrics"
	"dcvisitor/internal/visitor"
)

// MimeType of every export.
const MimeType = "text/csv; charset=utf-8"

// ErrNoData is returned when no record survives the filters. Nothing is delivered.
var ErrNoData = errors.New("no visitor records match the current filters")

// ExportError wraps any delivery failure.
type ExportError struct {
	Cause error
}

func (e *ExportError) Error() string { return "failed to export data to CSV: " + e.Cause.Error() }

func (e *ExportError) Unwrap() error { return e.Cause }

// Deliverer hands a finished CSV file to its destination.
type Deliverer interface {
	Deliver(ctx context.Context, data []byte, filename, mimeType string) error
}

// Filename is dc_visitors_<YYYY-MM-DDTHH-MM-SS>.csv in UTC.
func Filename(now time.Time) string {
	return "dc_visitors_" + now.UTC().Format("2006-01-02T15-04-05") + ".csv"
}

// Result describes a delivered export.
type Result struct {
	Filename string `json:"filename"`
	Rows     int    `json:"rows"`
	Bytes    int    `json:"bytes"`
}

// Exporter renders and delivers CSV exports.
type Exporter struct {
	loc *time.Location
	now func() time.Time
	log logrus.FieldLogger
}

// NewExporter formats timestamps in loc.
func NewExporter(loc *time.Location, log logrus.FieldLogger) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{loc: loc, now: time.Now, log: log}
}

// WithClock overrides the time source used for filenames.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// Export renders records and, when at least one row remains, delivers the
// text through d. target labels the export in metrics and logs.
func (e *Exporter) Export(ctx context.Context, records []visitor.Record, opts Options, d Deliverer, target string) (Result, error) {
	text, rows := Render(records, opts, e.loc)
	if rows == 0 {
		metrics.Exports.WithLabelValues(target, "empty").Inc()
		return Result{Rows: 0}, ErrNoData
	}

	res := Result{Filename: Filename(e.now()), Rows: rows, Bytes: len(text)}
	if err := d.Deliver(ctx, []byte(text), res.Filename, MimeType); err != nil {
		metrics.Exports.WithLabelValues(target, "failed").Inc()
		e.log.WithError(err).WithField("target", target).Error("csv export failed")
		return Result{}, &ExportError{Cause: err}
	}

	metrics.Exports.WithLabelValues(target, "ok").Inc()
	e.log.WithFields(logrus.Fields{"target": target, "rows": rows, "file": res.Filename}).Info("csv exported")
	return res, nil
}
