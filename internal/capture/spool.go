// Package capture spools photos taken at the kiosk until a registration is
// submitted. A Handle is an opaque local reference, never a durable URL.
package capture

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrPermissionDenied is returned when camera capture is disabled for this kiosk.
	ErrPermissionDenied = errors.New("capture: camera permission denied")
	// ErrUnknownHandle is returned for handles that were never issued or were discarded.
	ErrUnknownHandle = errors.New("capture: unknown photo handle")
	// ErrUnsupportedImage is returned when the captured bytes are not a JPEG, PNG or WebP image.
	ErrUnsupportedImage = errors.New("capture: unsupported image type")
	// ErrTooLarge is returned when a capture exceeds MaxBytes.
	ErrTooLarge = errors.New("capture: image too large")
)

// MaxBytes caps a single captured image.
const MaxBytes = 10 << 20

// Handle references a spooled photo.
type Handle string

var handlePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(jpg|png|webp)$`)

// Valid reports whether h has the shape of an issued handle.
func (h Handle) Valid() bool { return handlePattern.MatchString(string(h)) }

// Ext is the file extension without the dot.
func (h Handle) Ext() string { return strings.TrimPrefix(filepath.Ext(string(h)), ".") }

var extByType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ContentType maps a handle's extension back to its MIME type.
func ContentType(h Handle) string {
	for ct, ext := range extByType {
		if ext == h.Ext() {
			return ct
		}
	}
	return "application/octet-stream"
}

// Spool stores captured images in a local directory.
type Spool struct {
	dir     string
	enabled bool
	log     logrus.FieldLogger
}

// NewSpool creates the spool directory if needed.
func NewSpool(dir string, cameraEnabled bool, log logrus.FieldLogger) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("capture: create spool dir: %w", err)
	}
	return &Spool{dir: dir, enabled: cameraEnabled, log: log}, nil
}

// RequestPermission reports whether photos may be captured.
func (s *Spool) RequestPermission() bool { return s.enabled }

// Capture stores the image read from r and returns its handle. The image type
// is sniffed from the content.
func (s *Spool) Capture(r io.Reader) (Handle, error) {
	if !s.enabled {
		return "", ErrPermissionDenied
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("capture: read image: %w", err)
	}
	if len(data) > MaxBytes {
		return "", ErrTooLarge
	}
	ext, ok := extByType[http.DetectContentType(data)]
	if !ok {
		return "", ErrUnsupportedImage
	}

	h := Handle(uuid.NewString() + "." + ext)
	tmp, err := os.CreateTemp(s.dir, ".capture-*")
	if err != nil {
		return "", fmt.Errorf("capture: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("capture: write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("capture: close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(h)); err != nil {
		return "", fmt.Errorf("capture: store image: %w", err)
	}

	s.log.WithFields(logrus.Fields{"handle": h, "bytes": len(data)}).Debug("photo captured")
	return h, nil
}

// Open returns a reader for a spooled photo. The caller closes it.
func (s *Spool) Open(h Handle) (io.ReadCloser, error) {
	if !h.Valid() {
		return nil, ErrUnknownHandle
	}
	f, err := os.Open(s.path(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrUnknownHandle
		}
		return nil, fmt.Errorf("capture: open image: %w", err)
	}
	return f, nil
}

// Exists reports whether h refers to a spooled photo.
func (s *Spool) Exists(h Handle) bool {
	if !h.Valid() {
		return false
	}
	_, err := os.Stat(s.path(h))
	return err == nil
}

// Discard removes a spooled photo. Discarding an unknown handle is not an error.
func (s *Spool) Discard(h Handle) error {
	if !h.Valid() {
		return nil
	}
	if err := os.Remove(s.path(h)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("capture: discard image: %w", err)
	}
	return nil
}

// Sweep removes spooled photos last modified before cutoff, returning how
// many were removed. Handles in keep are left alone however old they are.
func (s *Spool) Sweep(cutoff time.Time, keep map[Handle]bool) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("capture: read spool dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || keep[Handle(e.Name())] {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("swept stale captures")
	}
	return removed, nil
}

func (s *Spool) path(h Handle) string {
	return filepath.Join(s.dir, string(h))
}
