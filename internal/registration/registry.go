package registration

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dcvisitor/internal/capture"
	"dcvisitor/internal/metrics"
)

// Registry owns the open forms, each bound to the kiosk device that opened it.
type Registry struct {
	pipe *Pipeline
	opts Options
	log  logrus.FieldLogger

	mu    sync.Mutex
	forms map[string]*Form
}

// NewRegistry creates an empty registry.
func NewRegistry(pipe *Pipeline, opts Options, log logrus.FieldLogger) *Registry {
	return &Registry{pipe: pipe, opts: opts, log: log, forms: make(map[string]*Form)}
}

// Open starts a form with one empty draft.
func (r *Registry) Open(owner string) *Form {
	f := newForm(owner, r.pipe, r.opts)

	r.mu.Lock()
	r.forms[f.ID] = f
	n := len(r.forms)
	r.mu.Unlock()

	metrics.OpenForms.Set(float64(n))
	r.log.WithFields(logrus.Fields{"form_id": f.ID, "device_id": owner}).Debug("registration form opened")
	return f
}

// Get returns the form if it exists and belongs to owner.
func (r *Registry) Get(id, owner string) (*Form, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.forms[id]
	if !ok || f.Owner != owner {
		return nil, ErrFormNotFound
	}
	return f, nil
}

// Close dismisses the form and forgets it.
func (r *Registry) Close(id, owner string) error {
	r.mu.Lock()
	f, ok := r.forms[id]
	if !ok || f.Owner != owner {
		r.mu.Unlock()
		return ErrFormNotFound
	}
	delete(r.forms, id)
	n := len(r.forms)
	r.mu.Unlock()

	f.Close()
	metrics.OpenForms.Set(float64(n))
	return nil
}

// Sweep closes forms untouched for longer than idle and returns how many it closed.
func (r *Registry) Sweep(idle time.Duration) int {
	now := r.pipe.now()

	r.mu.Lock()
	var stale []*Form
	for id, f := range r.forms {
		if f.idle(now, idle) {
			stale = append(stale, f)
			delete(r.forms, id)
		}
	}
	n := len(r.forms)
	r.mu.Unlock()

	for _, f := range stale {
		f.Close()
	}
	metrics.OpenForms.Set(float64(n))
	if len(stale) > 0 {
		r.log.WithField("closed", len(stale)).Info("swept idle registration forms")
	}
	return len(stale)
}

// Handles returns every spooled photo referenced by an open form.
func (r *Registry) Handles() map[capture.Handle]bool {
	r.mu.Lock()
	forms := make([]*Form, 0, len(r.forms))
	for _, f := range r.forms {
		forms = append(forms, f)
	}
	r.mu.Unlock()

	out := make(map[capture.Handle]bool)
	for _, f := range forms {
		for _, h := range f.handles() {
			out[h] = true
		}
	}
	return out
}

// Len is the number of open forms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

// CloseAll closes every form, used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	forms := r.forms
	r.forms = make(map[string]*Form)
	r.mu.Unlock()

	for _, f := range forms {
		f.Close()
	}
	metrics.OpenForms.Set(0)
}
