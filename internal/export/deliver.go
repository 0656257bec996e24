package export

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// Delivery targets used as metric labels.
const (
	TargetDownload = "download"
	TargetFile     = "file"
)

// DownloadDeliverer writes the file as an HTTP attachment.
type DownloadDeliverer struct {
	W http.ResponseWriter
}

func (d DownloadDeliverer) Deliver(_ context.Context, data []byte, filename, mimeType string) error {
	h := d.W.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	d.W.WriteHeader(http.StatusOK)
	if _, err := d.W.Write(data); err != nil {
		return fmt.Errorf("write download: %w", err)
	}
	return nil
}

// ShareFunc hands a delivered file to whatever presents it to the user.
type ShareFunc func(ctx context.Context, path, mimeType string) error

// FileDeliverer writes the file into Dir and then calls Share. The file only
// appears under its final name once fully written and is removed again if
// Share fails.
type FileDeliverer struct {
	Dir   string
	Share ShareFunc
}

func (d FileDeliverer) Deliver(ctx context.Context, data []byte, filename, mimeType string) error {
	if err := os.MkdirAll(d.Dir, 0o750); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.Dir, ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}

	path := filepath.Join(d.Dir, filename)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish export: %w", err)
	}
	if d.Share == nil {
		return nil
	}
	if err := d.Share(ctx, path, mimeType); err != nil {
		os.Remove(path)
		return fmt.Errorf("share export: %w", err)
	}
	return nil
}
