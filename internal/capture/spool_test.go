package capture

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcvisitor/internal/logging"
)

// smallest valid PNG header is enough for content sniffing
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

var jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{1}, 32)...)

func newSpool(t *testing.T, enabled bool) *Spool {
	t.Helper()
	s, err := NewSpool(filepath.Join(t.TempDir(), "spool"), enabled, logging.Discard())
	require.NoError(t, err)
	return s
}

func TestCaptureOpenDiscard(t *testing.T) {
	s := newSpool(t, true)
	require.True(t, s.RequestPermission())

	h, err := s.Capture(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.True(t, h.Valid())
	assert.Equal(t, "png", h.Ext())
	assert.Equal(t, "image/png", ContentType(h))
	assert.True(t, s.Exists(h))

	rc, err := s.Open(h)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, pngBytes, got)

	require.NoError(t, s.Discard(h))
	assert.False(t, s.Exists(h))
	_, err = s.Open(h)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.NoError(t, s.Discard(h), "discard is idempotent")
}

func TestCaptureJPEG(t *testing.T) {
	s := newSpool(t, true)
	h, err := s.Capture(bytes.NewReader(jpegBytes))
	require.NoError(t, err)
	assert.Equal(t, "jpg", h.Ext())
	assert.Equal(t, "image/jpeg", ContentType(h))
}

func TestCapturePermissionDenied(t *testing.T) {
	s := newSpool(t, false)
	assert.False(t, s.RequestPermission())
	_, err := s.Capture(bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCaptureRejectsNonImage(t *testing.T) {
	s := newSpool(t, true)
	_, err := s.Capture(bytes.NewReader([]byte("hello, not an image")))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestCaptureRejectsOversize(t *testing.T) {
	s := newSpool(t, true)
	big := append(append([]byte{}, pngBytes...), make([]byte, MaxBytes)...)
	_, err := s.Capture(bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestOpenRejectsTraversal(t *testing.T) {
	s := newSpool(t, true)
	for _, h := range []Handle{"../etc/passwd", "", "abc.png", "00000000-0000-0000-0000-000000000000.exe"} {
		_, err := s.Open(h)
		assert.ErrorIs(t, err, ErrUnknownHandle, string(h))
	}
}

func TestSweep(t *testing.T) {
	s := newSpool(t, true)
	old, err := s.Capture(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	fresh, err := s.Capture(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	attached, err := s.Capture(bytes.NewReader(pngBytes))
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(s.path(old), past, past))
	require.NoError(t, os.Chtimes(s.path(attached), past, past))

	n, err := s.Sweep(time.Now().Add(-time.Hour), map[Handle]bool{attached: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, s.Exists(old))
	assert.True(t, s.Exists(fresh))
	assert.True(t, s.Exists(attached), "photos still attached to a form survive the sweep")

	n, err = s.Sweep(time.Now().Add(-time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, s.Exists(attached))
}
