package registration

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"dcvisitor/internal/capture"
	"dcvisitor/internal/metrics"
	"dcvisitor/internal/objectstore"
	"dcvisitor/internal/visitor"
)

// Inserter stores a batch atomically; visitor.Service satisfies it.
type Inserter interface {
	InsertBatch(ctx context.Context, records []visitor.NewRecord) ([]visitor.Record, error)
}

// PhotoSource reads and releases spooled photos; capture.Spool satisfies it.
type PhotoSource interface {
	Open(h capture.Handle) (io.ReadCloser, error)
	Exists(h capture.Handle) bool
	Discard(h capture.Handle) error
}

// Pipeline is the upload-then-insert sequence shared by batch and single entry.
type Pipeline struct {
	Store    Inserter
	Photos   PhotoSource
	Uploader objectstore.Uploader
	Log      logrus.FieldLogger
	Now      func() time.Time
}

// Result is a successful submit.
type Result struct {
	Records  []visitor.Record `json:"records"`
	Warnings []*UploadError   `json:"-"`
	// Reset is false when the form was reset or closed while the submit ran.
	Reset bool `json:"reset"`
}

// WarningMessages renders Warnings for display.
func (r *Result) WarningMessages() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.Error())
	}
	return out
}

// run uploads each draft's photo in order and then performs one insert. An
// upload failure degrades that payload to no photo; an insert failure fails
// the whole batch.
func (p *Pipeline) run(ctx context.Context, drafts []Draft, mode string) (*Result, error) {
	payloads := make([]visitor.NewRecord, len(drafts))
	var warnings []*UploadError
	for i, d := range drafts {
		url, err := p.upload(ctx, d.Photo)
		if err != nil {
			w := &UploadError{DraftID: d.ID, Position: i + 1, Err: err}
			p.Log.WithError(err).WithFields(logrus.Fields{"draft_id": d.ID, "position": i + 1}).
				Warn("photo upload failed, registering without photo")
			warnings = append(warnings, w)
		}
		payloads[i] = d.payload(url)
	}

	stored, err := p.Store.InsertBatch(ctx, payloads)
	if err != nil {
		metrics.SubmitFailures.Inc()
		return nil, &SubmitError{Cause: err}
	}
	metrics.VisitorsRegistered.WithLabelValues(mode).Add(float64(len(stored)))

	for _, d := range drafts {
		p.discard(d.Photo)
	}
	return &Result{Records: stored, Warnings: warnings}, nil
}

func (p *Pipeline) upload(ctx context.Context, h capture.Handle) (string, error) {
	if h == "" {
		return "", nil
	}
	rc, err := p.Photos.Open(h)
	if err != nil {
		metrics.PhotoUploads.WithLabelValues("failed").Inc()
		return "", err
	}
	defer rc.Close()

	url, err := p.Uploader.Upload(ctx, rc, objectstore.PhotoName(p.now(), h.Ext()), capture.ContentType(h))
	if err != nil {
		metrics.PhotoUploads.WithLabelValues("failed").Inc()
		return "", err
	}
	metrics.PhotoUploads.WithLabelValues("ok").Inc()
	return url, nil
}

func (p *Pipeline) discard(h capture.Handle) {
	if h == "" {
		return
	}
	if err := p.Photos.Discard(h); err != nil {
		p.Log.WithError(err).WithField("handle", h).Warn("discard captured photo")
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// SubmitSingle registers one visitor through the same validate, upload and
// insert steps as a batch.
func (p *Pipeline) SubmitSingle(ctx context.Context, d Draft, requirePhoto bool) (*Result, error) {
	if f := d.missing(requirePhoto); f != "" {
		return nil, &ValidationError{Field: f, Position: 1}
	}
	if d.Photo != "" && !p.Photos.Exists(d.Photo) {
		return nil, capture.ErrUnknownHandle
	}
	if d.ID == "" {
		d.ID = "single"
	}
	return p.run(ctx, []Draft{d}, "single")
}
