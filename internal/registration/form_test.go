package registration

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcvisitor/internal/capture"
	"dcvisitor/internal/logging"
	"dcvisitor/internal/visitor"
)

type fakeInserter struct {
	mu    sync.Mutex
	calls [][]visitor.NewRecord
	err   error
	// when set, InsertBatch signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeInserter) InsertBatch(_ context.Context, in []visitor.NewRecord) ([]visitor.Record, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]visitor.NewRecord(nil), in...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([]visitor.Record, len(in))
	for i, nr := range in {
		out[i] = visitor.Record{ID: nr.Name + "-id", Name: nr.Name, PhotoURL: nr.PhotoURL}
	}
	return out, nil
}

func (f *fakeInserter) Calls() [][]visitor.NewRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePhotos serves the handle name as the photo content.
type fakePhotos struct {
	mu        sync.Mutex
	handles   map[capture.Handle]bool
	discarded []capture.Handle
}

func newFakePhotos(hs ...capture.Handle) *fakePhotos {
	p := &fakePhotos{handles: map[capture.Handle]bool{}}
	for _, h := range hs {
		p.handles[h] = true
	}
	return p
}

func (p *fakePhotos) Open(h capture.Handle) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.handles[h] {
		return nil, capture.ErrUnknownHandle
	}
	return io.NopCloser(strings.NewReader(string(h))), nil
}

func (p *fakePhotos) Exists(h capture.Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handles[h]
}

func (p *fakePhotos) Discard(h capture.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handles, h)
	p.discarded = append(p.discarded, h)
	return nil
}

func (p *fakePhotos) Discarded() []capture.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]capture.Handle(nil), p.discarded...)
}

// fakeUploader fails for photos whose content is listed in fail.
type fakeUploader struct {
	mu    sync.Mutex
	fail  map[string]bool
	names []string
}

func (u *fakeUploader) Upload(_ context.Context, r io.Reader, name, contentType string) (string, error) {
	b, _ := io.ReadAll(r)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.names = append(u.names, name)
	if u.fail[string(b)] {
		return "", errors.New("storage unavailable")
	}
	return "https://photos.example/" + string(b), nil
}

const (
	photoA capture.Handle = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa.jpg"
	photoB capture.Handle = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb.png"
	photoC capture.Handle = "cccccccc-cccc-cccc-cccc-cccccccccccc.jpg"
)

type harness struct {
	store    *fakeInserter
	photos   *fakePhotos
	uploader *fakeUploader
	pipe     *Pipeline
}

func newHarness() *harness {
	h := &harness{
		store:    &fakeInserter{},
		photos:   newFakePhotos(photoA, photoB, photoC),
		uploader: &fakeUploader{fail: map[string]bool{}},
	}
	h.pipe = &Pipeline{
		Store:    h.store,
		Photos:   h.photos,
		Uploader: h.uploader,
		Log:      logging.Discard(),
		Now:      func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) },
	}
	return h
}

func (h *harness) form(opts Options) *Form {
	return newForm("kiosk-1", h.pipe, opts)
}

func fill(t *testing.T, f *Form, id, name, nrc, phone string) {
	t.Helper()
	require.NoError(t, f.UpdateDraftField(id, FieldName, name))
	require.NoError(t, f.UpdateDraftField(id, FieldNationalID, nrc))
	require.NoError(t, f.UpdateDraftField(id, FieldPhone, phone))
}

func TestNewFormHasOneEmptyDraft(t *testing.T) {
	f := newHarness().form(Options{})
	drafts := f.Drafts()
	require.Len(t, drafts, 1)
	assert.NotEmpty(t, drafts[0].ID)
	assert.Equal(t, Draft{ID: drafts[0].ID}, drafts[0])
}

func TestAddDraftAppendsAndKeepsExisting(t *testing.T) {
	f := newHarness().form(Options{})
	first := f.Drafts()[0]
	fill(t, f, first.ID, "Aung", "12/ABC(N)1", "0991")
	before := f.Drafts()

	for n := 1; n < DefaultMaxDrafts; n++ {
		d, err := f.AddDraft()
		require.NoError(t, err)
		drafts := f.Drafts()
		require.Len(t, drafts, n+1)
		assert.Equal(t, d, drafts[n])
		assert.Equal(t, before, drafts[:n], "existing drafts unchanged")
		before = drafts
	}

	_, err := f.AddDraft()
	assert.ErrorIs(t, err, ErrTooManyDrafts)
	assert.Len(t, f.Drafts(), DefaultMaxDrafts)
}

func TestAddDraftUniqueIDs(t *testing.T) {
	f := newHarness().form(Options{MaxDrafts: 3})
	_, err := f.AddDraft()
	require.NoError(t, err)
	_, err = f.AddDraft()
	require.NoError(t, err)
	_, err = f.AddDraft()
	assert.ErrorIs(t, err, ErrTooManyDrafts)

	seen := map[string]bool{}
	for _, d := range f.Drafts() {
		assert.False(t, seen[d.ID])
		seen[d.ID] = true
	}
}

func TestRemoveDraftNeverEmpties(t *testing.T) {
	h := newHarness()
	f := h.form(Options{})
	only := f.Drafts()[0]

	require.NoError(t, f.RemoveDraft(only.ID))
	assert.Len(t, f.Drafts(), 1)

	second, err := f.AddDraft()
	require.NoError(t, err)
	third, err := f.AddDraft()
	require.NoError(t, err)
	require.NoError(t, f.AttachPhoto(second.ID, photoA))

	require.NoError(t, f.RemoveDraft("no-such-draft"))
	assert.Len(t, f.Drafts(), 3)

	require.NoError(t, f.RemoveDraft(second.ID))
	drafts := f.Drafts()
	require.Len(t, drafts, 2)
	assert.Equal(t, []string{only.ID, third.ID}, []string{drafts[0].ID, drafts[1].ID})
	assert.Equal(t, []capture.Handle{photoA}, h.photos.Discarded())

	require.NoError(t, f.RemoveDraft(only.ID))
	require.NoError(t, f.RemoveDraft(third.ID))
	assert.Len(t, f.Drafts(), 1)
}

func TestUpdateDraftFieldTouchesOneDraft(t *testing.T) {
	f := newHarness().form(Options{})
	a := f.Drafts()[0]
	b, err := f.AddDraft()
	require.NoError(t, err)

	require.NoError(t, f.UpdateDraftField(b.ID, FieldCompany, "Acme"))
	require.NoError(t, f.UpdateDraftField(b.ID, FieldInventory, "2x laptop\n1x \"drive\""))
	drafts := f.Drafts()
	assert.Equal(t, Draft{ID: a.ID}, drafts[0])
	assert.Equal(t, b.ID, drafts[1].ID)
	assert.Equal(t, "Acme", drafts[1].Company)
	assert.Equal(t, "2x laptop\n1x \"drive\"", drafts[1].Inventory)

	assert.ErrorIs(t, f.UpdateDraftField(b.ID, Field("id"), "x"), ErrUnknownField)
	assert.ErrorIs(t, f.UpdateDraftField(b.ID, FieldPhoto, "x"), ErrUnknownField)
	assert.NoError(t, f.UpdateDraftField("missing", FieldName, "x"))
	assert.Equal(t, drafts, f.Drafts())
}

func TestUpdateDraftFieldsAppliesAllOrNothing(t *testing.T) {
	f := newHarness().form(Options{})
	id := f.Drafts()[0].ID

	err := f.UpdateDraftFields(id, map[Field]string{
		FieldName:      "Aung",
		FieldPhone:     "0912",
		Field("bogus"): "x",
	})
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, Draft{ID: id}, f.Drafts()[0])

	require.NoError(t, f.UpdateDraftFields(id, map[Field]string{FieldName: "Aung", FieldPhone: "0912"}))
	d := f.Drafts()[0]
	assert.Equal(t, "Aung", d.Name)
	assert.Equal(t, "0912", d.Phone)

	assert.NoError(t, f.UpdateDraftFields("missing", map[Field]string{FieldName: "x"}))
	assert.ErrorIs(t, f.UpdateDraftFields("missing", map[Field]string{FieldPhoto: "x"}), ErrUnknownField)
}

func TestAttachPhoto(t *testing.T) {
	h := newHarness()
	f := h.form(Options{})
	a := f.Drafts()[0]
	b, err := f.AddDraft()
	require.NoError(t, err)

	assert.ErrorIs(t, f.AttachPhoto(a.ID, "dddddddd-dddd-dddd-dddd-dddddddddddd.jpg"), capture.ErrUnknownHandle)

	require.NoError(t, f.AttachPhoto(a.ID, photoA))
	drafts := f.Drafts()
	assert.Equal(t, photoA, drafts[0].Photo)
	assert.Empty(t, drafts[1].Photo)

	require.NoError(t, f.AttachPhoto(a.ID, photoB))
	assert.Equal(t, photoB, f.Drafts()[0].Photo)
	assert.Equal(t, []capture.Handle{photoA}, h.photos.Discarded())

	require.NoError(t, f.AttachPhoto(a.ID, ""))
	assert.Empty(t, f.Drafts()[0].Photo)
	assert.Empty(t, f.Drafts()[1].Photo)
	_ = b
}

func TestValidateMissingPhone(t *testing.T) {
	f := newHarness().form(Options{})
	id := f.Drafts()[0].ID
	require.NoError(t, f.UpdateDraftField(id, FieldName, "Aung"))
	require.NoError(t, f.UpdateDraftField(id, FieldNationalID, "12/ABC(N)1"))
	require.NoError(t, f.UpdateDraftField(id, FieldPhone, "   "))

	err := f.Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, FieldPhone, ve.Field)
	assert.Equal(t, 1, ve.Position)
	assert.Equal(t, "all visitors must have Phone Number filled", err.Error())
}

func TestValidateStopsAtFirstViolation(t *testing.T) {
	f := newHarness().form(Options{})
	first := f.Drafts()[0]
	second, err := f.AddDraft()
	require.NoError(t, err)
	fill(t, f, first.ID, "A", "", "1")
	fill(t, f, second.ID, "", "2", "2")

	var ve *ValidationError
	require.ErrorAs(t, f.Validate(), &ve)
	assert.Equal(t, FieldNationalID, ve.Field)
	assert.Equal(t, 1, ve.Position)
}

func TestValidateRequiredPhotoPosition(t *testing.T) {
	f := newHarness().form(Options{RequirePhoto: true})
	ids := []string{f.Drafts()[0].ID}
	for i := 0; i < 2; i++ {
		d, err := f.AddDraft()
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	for i, id := range ids {
		fill(t, f, id, "V", "N", "P")
		if i != 1 {
			require.NoError(t, f.AttachPhoto(id, []capture.Handle{photoA, photoB, photoC}[i]))
		}
	}

	var ve *ValidationError
	require.ErrorAs(t, f.Validate(), &ve)
	assert.Equal(t, FieldPhoto, ve.Field)
	assert.Equal(t, 2, ve.Position)
	assert.Contains(t, ve.Error(), "visitor 2")
}

func TestSubmitRequiredPhotoMustStillBeSpooled(t *testing.T) {
	h := newHarness()
	f := h.form(Options{RequirePhoto: true})
	first := f.Drafts()[0]
	second, err := f.AddDraft()
	require.NoError(t, err)
	fill(t, f, first.ID, "Aung", "12/ABC(N)1", "0991")
	fill(t, f, second.ID, "Su", "9/XYZ(N)2", "0992")
	require.NoError(t, f.AttachPhoto(first.ID, photoA))
	require.NoError(t, f.AttachPhoto(second.ID, photoB))

	require.NoError(t, h.photos.Discard(photoB))

	_, err = f.Submit(context.Background())
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, FieldPhoto, ve.Field)
	assert.Equal(t, 2, ve.Position)
	assert.Empty(t, h.store.Calls())
	assert.False(t, f.Snapshot().Submitting)
}

func TestSubmitInvalidDoesNotInsert(t *testing.T) {
	h := newHarness()
	f := h.form(Options{})
	_, err := f.Submit(context.Background())
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, FieldName, ve.Field)
	assert.Empty(t, h.store.Calls())
}

func twoDraftForm(t *testing.T, h *harness) (*Form, []string) {
	t.Helper()
	f := h.form(Options{})
	a := f.Drafts()[0]
	b, err := f.AddDraft()
	require.NoError(t, err)
	fill(t, f, a.ID, "Aung", "12/ABC(N)1", "0991")
	fill(t, f, b.ID, "Su", "9/XYZ(N)2", "0992")
	require.NoError(t, f.AttachPhoto(a.ID, photoA))
	require.NoError(t, f.AttachPhoto(b.ID, photoB))
	return f, []string{a.ID, b.ID}
}

func TestSubmitBatchSuccess(t *testing.T) {
	h := newHarness()
	f, ids := twoDraftForm(t, h)

	res, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Records, 2)

	calls := h.store.Calls()
	require.Len(t, calls, 1, "exactly one insert")
	require.Len(t, calls[0], 2)
	assert.Equal(t, "Aung", calls[0][0].Name)
	assert.Equal(t, "https://photos.example/"+string(photoA), calls[0][0].PhotoURL)
	assert.Equal(t, "Su", calls[0][1].Name)
	assert.Equal(t, "https://photos.example/"+string(photoB), calls[0][1].PhotoURL)
	for _, p := range calls[0] {
		assert.NotContains(t, []string{p.Name, p.NationalID, p.Phone, p.PhotoURL}, ids[0])
		assert.NotContains(t, []string{p.Name, p.NationalID, p.Phone, p.PhotoURL}, ids[1])
		assert.NotEqual(t, string(photoA), p.PhotoURL)
		assert.NotEqual(t, string(photoB), p.PhotoURL)
	}

	drafts := f.Drafts()
	require.Len(t, drafts, 1)
	assert.Equal(t, Draft{ID: drafts[0].ID}, drafts[0])
	assert.NotContains(t, ids, drafts[0].ID)
	assert.ElementsMatch(t, []capture.Handle{photoA, photoB}, h.photos.Discarded())

	require.Len(t, h.uploader.names, 2)
	assert.True(t, strings.HasSuffix(h.uploader.names[0], ".jpg"))
	assert.True(t, strings.HasSuffix(h.uploader.names[1], ".png"))
}

func TestSubmitUploadFailureDegrades(t *testing.T) {
	h := newHarness()
	h.uploader.fail[string(photoB)] = true
	f, ids := twoDraftForm(t, h)

	res, err := f.Submit(context.Background())
	require.NoError(t, err)

	calls := h.store.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.NotEmpty(t, calls[0][0].PhotoURL)
	assert.Empty(t, calls[0][1].PhotoURL)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 2, res.Warnings[0].Position)
	assert.Equal(t, ids[1], res.Warnings[0].DraftID)
	assert.Equal(t, []string{"photo upload failed for visitor 2: storage unavailable"}, res.WarningMessages())
	assert.Len(t, f.Drafts(), 1)
}

func TestSubmitStoreFailureKeepsDrafts(t *testing.T) {
	h := newHarness()
	h.store.err = &visitor.StoreError{Op: "insert visitors", Err: errors.New("network unreachable")}
	f, _ := twoDraftForm(t, h)
	before := f.Drafts()

	_, err := f.Submit(context.Background())
	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "insert visitors: network unreachable", err.Error())
	var store *visitor.StoreError
	assert.ErrorAs(t, err, &store)

	assert.Equal(t, before, f.Drafts())
	assert.Empty(t, h.photos.Discarded())

	// retry after the store recovers
	h.store.mu.Lock()
	h.store.err = nil
	h.store.mu.Unlock()
	h.photos = newFakePhotos(photoA, photoB)
	h.pipe.Photos = h.photos
	res, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func blockingHarness() *harness {
	h := newHarness()
	h.store.entered = make(chan struct{})
	h.store.release = make(chan struct{})
	return h
}

func TestDoubleSubmitIsRejected(t *testing.T) {
	h := blockingHarness()
	f, ids := twoDraftForm(t, h)

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()
	<-h.store.entered

	_, err := f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.ErrorIs(t, f.UpdateDraftField(ids[0], FieldName, "changed"), ErrSubmitInFlight)
	_, err = f.AddDraft()
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.True(t, f.Snapshot().Submitting)

	close(h.store.release)
	require.NoError(t, <-done)
	assert.Len(t, h.store.Calls(), 1)
	assert.False(t, f.Snapshot().Submitting)
}

func TestLateCompletionAfterResetLeavesFormAlone(t *testing.T) {
	h := blockingHarness()
	f, _ := twoDraftForm(t, h)

	type out struct {
		res *Result
		err error
	}
	done := make(chan out, 1)
	go func() {
		res, err := f.Submit(context.Background())
		done <- out{res, err}
	}()
	<-h.store.entered

	require.NoError(t, f.Reset())
	afterReset := f.Drafts()
	require.Len(t, afterReset, 1)
	assert.Empty(t, h.photos.Discarded(), "in-flight photos belong to the submit")

	close(h.store.release)
	o := <-done
	require.NoError(t, o.err)
	assert.False(t, o.res.Reset)
	assert.Equal(t, afterReset, f.Drafts())
	assert.ElementsMatch(t, []capture.Handle{photoA, photoB}, h.photos.Discarded())
}

func TestStoreFailureAfterResetDiscardsBatchPhotos(t *testing.T) {
	h := blockingHarness()
	h.store.err = errors.New("connection reset")
	f, _ := twoDraftForm(t, h)

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()
	<-h.store.entered

	require.NoError(t, f.Reset())
	assert.ElementsMatch(t, []capture.Handle{photoA, photoB}, f.handles(), "running submit still needs its photos")
	assert.Empty(t, h.photos.Discarded())

	close(h.store.release)
	var se *SubmitError
	require.ErrorAs(t, <-done, &se)
	assert.ElementsMatch(t, []capture.Handle{photoA, photoB}, h.photos.Discarded())
	assert.Empty(t, f.handles())
}

func TestLateCompletionAfterClose(t *testing.T) {
	h := blockingHarness()
	f, _ := twoDraftForm(t, h)

	done := make(chan *Result, 1)
	go func() {
		res, _ := f.Submit(context.Background())
		done <- res
	}()
	<-h.store.entered
	f.Close()

	close(h.store.release)
	res := <-done
	require.NotNil(t, res)
	assert.False(t, res.Reset)
	assert.Empty(t, f.Drafts())
	assert.ErrorIs(t, f.Reset(), ErrFormClosed)
	_, err := f.AddDraft()
	assert.ErrorIs(t, err, ErrFormClosed)
}

func TestResetAndCloseDiscardPhotos(t *testing.T) {
	h := newHarness()
	f, _ := twoDraftForm(t, h)
	require.NoError(t, f.Reset())
	assert.Len(t, f.Drafts(), 1)
	assert.ElementsMatch(t, []capture.Handle{photoA, photoB}, h.photos.Discarded())

	g := h.form(Options{})
	require.NoError(t, g.AttachPhoto(g.Drafts()[0].ID, photoC))
	g.Close()
	g.Close()
	assert.Contains(t, h.photos.Discarded(), photoC)
}

func TestSubmitSingle(t *testing.T) {
	h := newHarness()
	d := Draft{Name: " Aung ", NationalID: "12/ABC(N)1", Phone: "0991", Company: "Acme", Photo: photoC}

	res, err := h.pipe.SubmitSingle(context.Background(), d, false)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	calls := h.store.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, "Aung", calls[0][0].Name)
	assert.Equal(t, "Acme", calls[0][0].Company)
	assert.Equal(t, "https://photos.example/"+string(photoC), calls[0][0].PhotoURL)
	assert.Equal(t, []capture.Handle{photoC}, h.photos.Discarded())
}

func TestSubmitSingleValidation(t *testing.T) {
	h := newHarness()

	_, err := h.pipe.SubmitSingle(context.Background(), Draft{Name: "A", NationalID: "N"}, false)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, FieldPhone, ve.Field)

	_, err = h.pipe.SubmitSingle(context.Background(), Draft{Name: "A", NationalID: "N", Phone: "1"}, true)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, FieldPhoto, ve.Field)

	_, err = h.pipe.SubmitSingle(context.Background(),
		Draft{Name: "A", NationalID: "N", Phone: "1", Photo: "eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee.jpg"}, false)
	assert.ErrorIs(t, err, capture.ErrUnknownHandle)
	assert.Empty(t, h.store.Calls())
}
