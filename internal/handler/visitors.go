package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dcvisitor/internal/export"
	"dcvisitor/internal/registration"
	"dcvisitor/internal/visitor"
)

// createVisitor registers one visitor without opening a form.
func (s *Server) createVisitor(c *gin.Context) {
	var d registration.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.Pipeline.SubmitSingle(c.Request.Context(), d, s.RequirePhoto)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": res.Records[0], "warnings": res.WarningMessages()})
}

func (s *Server) listVisitors(c *gin.Context) {
	crit, err := s.criteria(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	records, err := s.Visitors.List(c.Request.Context(), crit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visitors": records, "count": len(records)})
}

// exportVisitors streams the filtered list as a CSV attachment.
func (s *Server) exportVisitors(c *gin.Context) {
	crit, err := s.criteria(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	photos, _ := strconv.ParseBool(c.DefaultQuery("photos", "false"))
	records, err := s.Visitors.List(c.Request.Context(), crit)
	if err != nil {
		s.fail(c, err)
		return
	}
	opts := export.Options{IncludePhotos: photos, Criteria: crit}
	if _, err := s.Exporter.Export(c.Request.Context(), records, opts, export.DownloadDeliverer{W: c.Writer}, export.TargetDownload); err != nil {
		s.fail(c, err)
	}
}

func (s *Server) getVisitor(c *gin.Context) {
	rec, err := s.Visitors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) updateVisitor(c *gin.Context) {
	var p visitor.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	if err := p.Validate(); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := s.Visitors.Update(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) checkoutVisitor(c *gin.Context) {
	rec, err := s.Visitors.Checkout(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) deleteVisitor(c *gin.Context) {
	if err := s.Visitors.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// criteria reads status, q, from and to. Dates are YYYY-MM-DD in the export
// timezone or RFC 3339; a bare "to" date covers that whole day.
func (s *Server) criteria(c *gin.Context) (visitor.Criteria, error) {
	status, err := visitor.ParseStatus(c.Query("status"))
	if err != nil {
		return visitor.Criteria{}, err
	}
	crit := visitor.Criteria{Status: status, Search: c.Query("q")}

	from, to := c.Query("from"), c.Query("to")
	if from == "" && to == "" {
		return crit, nil
	}
	loc := s.Visitors.Location()
	r := visitor.DateRange{End: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)}
	if from != "" {
		t, day, err := parseBound(from, loc)
		if err != nil {
			return visitor.Criteria{}, fmt.Errorf("from: %w", err)
		}
		r.Start = t
		if day {
			r.Start = visitor.DayRange(t, loc).Start
		}
	}
	if to != "" {
		t, day, err := parseBound(to, loc)
		if err != nil {
			return visitor.Criteria{}, fmt.Errorf("to: %w", err)
		}
		r.End = t
		if day {
			r.End = visitor.DayRange(t, loc).End
		}
	}
	if r.End.Before(r.Start) {
		return visitor.Criteria{}, fmt.Errorf("to is before from")
	}
	crit.Range = &r
	return crit, nil
}

func parseBound(v string, loc *time.Location) (t time.Time, day bool, err error) {
	if t, err = time.ParseInLocation("2006-01-02", v, loc); err == nil {
		return t, true, nil
	}
	if t, err = time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q", v)
}
