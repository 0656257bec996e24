package handler

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dcvisitor/internal/capture"
)

// capturePhoto spools an image sent as multipart "file" or as JSON
// {"data": "<base64 or data URL>"} and returns its local handle.
func (s *Server) capturePhoto(c *gin.Context) {
	if !s.Spool.RequestPermission() {
		s.fail(c, capture.ErrPermissionDenied)
		return
	}

	var src io.Reader
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			badRequest(c, errors.New("file field required"))
			return
		}
		defer file.Close()
		src = file
	} else {
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, errors.New(`provide {"data": "<base64 data URL>"}`))
			return
		}
		raw, err := decodeImage(body.Data)
		if err != nil {
			badRequest(c, err)
			return
		}
		src = bytes.NewReader(raw)
	}

	h, err := s.Spool.Capture(src)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"handle": h})
}

// decodeImage accepts raw base64 or a data URL such as data:image/jpeg;base64,....
func decodeImage(data string) ([]byte, error) {
	if strings.HasPrefix(data, "data:") {
		i := strings.Index(data, ",")
		if i < 0 || !strings.Contains(data[:i], ";base64") {
			return nil, errors.New("data URL must be base64 encoded")
		}
		data = data[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, errors.New("invalid base64 image data")
	}
	return raw, nil
}
