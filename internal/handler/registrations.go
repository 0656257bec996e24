package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dcvisitor/internal/capture"
	"dcvisitor/internal/registration"
)

func (s *Server) form(c *gin.Context) (*registration.Form, bool) {
	f, err := s.Forms.Get(c.Param("id"), deviceID(c))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return f, true
}

func (s *Server) openForm(c *gin.Context) {
	f := s.Forms.Open(deviceID(c))
	c.JSON(http.StatusCreated, f.Snapshot())
}

func (s *Server) getForm(c *gin.Context) {
	if f, ok := s.form(c); ok {
		c.JSON(http.StatusOK, f.Snapshot())
	}
}

func (s *Server) closeForm(c *gin.Context) {
	if err := s.Forms.Close(c.Param("id"), deviceID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) resetForm(c *gin.Context) {
	f, ok := s.form(c)
	if !ok {
		return
	}
	if err := f.Reset(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f.Snapshot())
}

func (s *Server) addDraft(c *gin.Context) {
	f, ok := s.form(c)
	if !ok {
		return
	}
	if _, err := f.AddDraft(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f.Snapshot())
}

func (s *Server) removeDraft(c *gin.Context) {
	f, ok := s.form(c)
	if !ok {
		return
	}
	if err := f.RemoveDraft(c.Param("draftID")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f.Snapshot())
}

// updateDraft applies a map of field name to value, e.g. {"name": "Aung"}.
// A body naming any unknown field changes nothing.
func (s *Server) updateDraft(c *gin.Context) {
	f, ok := s.form(c)
	if !ok {
		return
	}
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err)
		return
	}
	values := make(map[registration.Field]string, len(fields))
	for name, value := range fields {
		values[registration.Field(name)] = value
	}
	if err := f.UpdateDraftFields(c.Param("draftID"), values); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f.Snapshot())
}

// attachPhoto binds a spooled capture to a draft; an empty handle clears it.
func (s *Server) attachPhoto(c *gin.Context) {
	f, ok := s.form(c)
	if !ok {
		return
	}
	var body struct {
		Handle capture.Handle `json:"handle"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if err := f.AttachPhoto(c.Param("draftID"), body.Handle); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f.Snapshot())
}

func (s *Server) submitForm(c *gin.Context) {
	f, ok := s.form(c)
	if !ok {
		return
	}
	res, err := f.Submit(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"records":  res.Records,
		"warnings": res.WarningMessages(),
		"reset":    res.Reset,
		"form":     f.Snapshot(),
	})
}
