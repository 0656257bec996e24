package registration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dcvisitor/internal/capture"
)

// DefaultMaxDrafts caps the drafts in one form when Options.MaxDrafts is unset.
const DefaultMaxDrafts = 50

// Options configure new forms.
type Options struct {
	MaxDrafts    int
	RequirePhoto bool
}

// Form is one batch registration session. It always holds at least one draft.
// All methods are safe for concurrent use; edits are refused while a submit
// runs, Reset and Close are not.
type Form struct {
	ID    string
	Owner string

	pipe *Pipeline
	opts Options

	mu         sync.Mutex
	drafts     []Draft
	submitting bool
	inflight   []capture.Handle
	closed     bool
	gen        uint64
	touched    time.Time
}

func newForm(owner string, pipe *Pipeline, opts Options) *Form {
	if opts.MaxDrafts <= 0 {
		opts.MaxDrafts = DefaultMaxDrafts
	}
	return &Form{
		ID:      uuid.NewString(),
		Owner:   owner,
		pipe:    pipe,
		opts:    opts,
		drafts:  []Draft{newDraft()},
		touched: pipe.now(),
	}
}

// View is a point-in-time copy of a form.
type View struct {
	ID           string  `json:"id"`
	Drafts       []Draft `json:"drafts"`
	Submitting   bool    `json:"submitting"`
	RequirePhoto bool    `json:"require_photo"`
	MaxDrafts    int     `json:"max_drafts"`
}

// Snapshot copies the form's current state.
func (f *Form) Snapshot() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return View{
		ID:           f.ID,
		Drafts:       append([]Draft(nil), f.drafts...),
		Submitting:   f.submitting,
		RequirePhoto: f.opts.RequirePhoto,
		MaxDrafts:    f.opts.MaxDrafts,
	}
}

// Drafts returns a copy of the drafts in order.
func (f *Form) Drafts() []Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Draft(nil), f.drafts...)
}

// editable locks the form for a mutation. On error the lock is released.
func (f *Form) editable() error {
	f.mu.Lock()
	switch {
	case f.closed:
		f.mu.Unlock()
		return ErrFormClosed
	case f.submitting:
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	f.touched = f.pipe.now()
	return nil
}

func (f *Form) index(id string) int {
	for i := range f.drafts {
		if f.drafts[i].ID == id {
			return i
		}
	}
	return -1
}

// AddDraft appends an empty draft and returns it.
func (f *Form) AddDraft() (Draft, error) {
	if err := f.editable(); err != nil {
		return Draft{}, err
	}
	defer f.mu.Unlock()

	if len(f.drafts) >= f.opts.MaxDrafts {
		return Draft{}, ErrTooManyDrafts
	}
	d := newDraft()
	f.drafts = append(f.drafts, d)
	return d, nil
}

// RemoveDraft removes the draft with id unless it is the last one. Unknown
// ids are ignored.
func (f *Form) RemoveDraft(id string) error {
	if err := f.editable(); err != nil {
		return err
	}
	defer f.mu.Unlock()

	i := f.index(id)
	if i < 0 || len(f.drafts) == 1 {
		return nil
	}
	photo := f.drafts[i].Photo
	f.drafts = append(f.drafts[:i:i], f.drafts[i+1:]...)
	f.pipe.discard(photo)
	return nil
}

// UpdateDraftField sets one field of one draft. Unknown ids are ignored.
func (f *Form) UpdateDraftField(id string, field Field, value string) error {
	return f.UpdateDraftFields(id, map[Field]string{field: value})
}

// UpdateDraftFields sets several fields of one draft at once. Every name is
// checked before any value is applied, so an unknown field leaves the draft
// unchanged. Unknown ids are ignored.
func (f *Form) UpdateDraftFields(id string, values map[Field]string) error {
	var blank Draft
	for field := range values {
		if blank.field(field) == nil {
			return ErrUnknownField
		}
	}
	if err := f.editable(); err != nil {
		return err
	}
	defer f.mu.Unlock()

	i := f.index(id)
	if i < 0 {
		return nil
	}
	for field, v := range values {
		*f.drafts[i].field(field) = v
	}
	return nil
}

// AttachPhoto sets the draft's photo, or clears it when h is empty. A
// replaced photo is discarded from the spool.
func (f *Form) AttachPhoto(id string, h capture.Handle) error {
	if h != "" && !f.pipe.Photos.Exists(h) {
		return capture.ErrUnknownHandle
	}
	if err := f.editable(); err != nil {
		return err
	}
	defer f.mu.Unlock()

	i := f.index(id)
	if i < 0 {
		return nil
	}
	old := f.drafts[i].Photo
	f.drafts[i].Photo = h
	if old != "" && old != h {
		f.pipe.discard(old)
	}
	return nil
}

// Validate checks drafts in order and reports the first missing field.
func (f *Form) Validate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked()
}

// validateLocked also confirms required photos are still spooled.
func (f *Form) validateLocked() error {
	if err := validate(f.drafts, f.opts.RequirePhoto); err != nil {
		return err
	}
	if !f.opts.RequirePhoto {
		return nil
	}
	for i, d := range f.drafts {
		if !f.pipe.Photos.Exists(d.Photo) {
			return &ValidationError{Field: FieldPhoto, Position: i + 1}
		}
	}
	return nil
}

func validate(drafts []Draft, requirePhoto bool) error {
	for i, d := range drafts {
		if field := d.missing(requirePhoto); field != "" {
			return &ValidationError{Field: field, Position: i + 1}
		}
	}
	return nil
}

// Submit validates, uploads photos and inserts every draft as one batch. On
// success the form is reset to a single empty draft unless it was reset or
// closed while the submit ran. On a store failure the drafts are untouched;
// if the form was reset or closed meanwhile the batch photos are discarded.
func (f *Form) Submit(ctx context.Context) (*Result, error) {
	if err := f.editable(); err != nil {
		return nil, err
	}
	if err := f.validateLocked(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	batch := append([]Draft(nil), f.drafts...)
	gen := f.gen
	f.submitting = true
	for _, d := range batch {
		f.inflight = append(f.inflight, d.Photo)
	}
	f.mu.Unlock()

	res, err := f.pipe.run(ctx, batch, "batch")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	f.inflight = nil
	f.touched = f.pipe.now()
	if err != nil {
		// nobody else holds these photos once the form moved on
		if f.gen != gen || f.closed {
			for _, d := range batch {
				f.pipe.discard(d.Photo)
			}
		}
		return nil, err
	}
	if f.gen == gen && !f.closed {
		f.drafts = []Draft{newDraft()}
		f.gen++
		res.Reset = true
	}
	return res, nil
}

// Reset drops all drafts and starts over with one empty draft.
func (f *Form) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFormClosed
	}
	f.clearLocked()
	f.drafts = []Draft{newDraft()}
	f.touched = f.pipe.now()
	return nil
}

// Close ends the form. A submit still running completes but leaves the
// form alone.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.clearLocked()
	f.drafts = nil
	f.closed = true
}

// clearLocked bumps the generation and releases spooled photos. While a
// submit runs its photos belong to the submit, which discards them.
func (f *Form) clearLocked() {
	f.gen++
	if f.submitting {
		return
	}
	for _, d := range f.drafts {
		f.pipe.discard(d.Photo)
	}
}

// handles lists the spooled photos the form still needs, including those of
// a running submit.
func (f *Form) handles() []capture.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]capture.Handle(nil), f.inflight...)
	for _, d := range f.drafts {
		if d.Photo != "" {
			out = append(out, d.Photo)
		}
	}
	return out
}

func (f *Form) idle(now time.Time, ttl time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.submitting && now.Sub(f.touched) > ttl
}
