// Package handler exposes the kiosk and admin HTTP API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"dcvisitor/internal/auth"
	"dcvisitor/internal/capture"
	"dcvisitor/internal/export"
	"dcvisitor/internal/registration"
	"dcvisitor/internal/visitor"
)

// DeviceStore tracks kiosks and refresh tokens; device.Repository satisfies it.
type DeviceStore interface {
	Register(ctx context.Context, deviceID string) error
	SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error
	ConsumeRefreshToken(ctx context.Context, deviceID, token string) error
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// Server holds the dependencies of every route.
type Server struct {
	Visitors     *visitor.Service
	Forms        *registration.Registry
	Pipeline     *registration.Pipeline
	Spool        *capture.Spool
	Exporter     *export.Exporter
	Devices      DeviceStore
	Issuer       *auth.Issuer
	Checks       map[string]Check
	RequirePhoto bool
	Log          logrus.FieldLogger
}

// Routes registers every endpoint on r. limit runs after authentication so
// it can key by device.
func (s *Server) Routes(r *gin.Engine, limit gin.HandlerFunc) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.health)

	r.POST("/v1/devices/register", limit, s.registerDevice)
	r.POST("/v1/devices/refresh", limit, s.refreshDevice)

	v1 := r.Group("/v1", auth.DeviceAuth(s.Issuer), limit)

	v1.POST("/photos", s.capturePhoto)

	v1.POST("/visitors", s.createVisitor)
	v1.GET("/visitors", s.listVisitors)
	v1.GET("/visitors/export", s.exportVisitors)
	v1.GET("/visitors/:id", s.getVisitor)
	v1.PATCH("/visitors/:id", s.updateVisitor)
	v1.POST("/visitors/:id/checkout", s.checkoutVisitor)
	v1.DELETE("/visitors/:id", s.deleteVisitor)

	v1.POST("/registrations", s.openForm)
	v1.GET("/registrations/:id", s.getForm)
	v1.DELETE("/registrations/:id", s.closeForm)
	v1.POST("/registrations/:id/reset", s.resetForm)
	v1.POST("/registrations/:id/drafts", s.addDraft)
	v1.PATCH("/registrations/:id/drafts/:draftID", s.updateDraft)
	v1.DELETE("/registrations/:id/drafts/:draftID", s.removeDraft)
	v1.PUT("/registrations/:id/drafts/:draftID/photo", s.attachPhoto)
	v1.POST("/registrations/:id/submit", s.submitForm)

	admin := v1.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/stats", s.stats)
	admin.GET("/ping", s.ping)
	admin.DELETE("/visitors", s.clearVisitors)
}

func (s *Server) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range s.Checks {
		ok := check(c.Request.Context()) == nil
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func deviceID(c *gin.Context) string {
	return c.GetString(auth.DeviceIDKey)
}

// fail maps domain errors to HTTP responses. Store errors keep their message.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		ve    *registration.ValidationError
		se    *registration.SubmitError
		store *visitor.StoreError
		ee    *export.ExportError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field, "position": ve.Position})
	case errors.Is(err, visitor.ErrNotFound), errors.Is(err, registration.ErrFormNotFound),
		errors.Is(err, registration.ErrFormClosed):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, export.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, visitor.ErrAlreadyCheckedOut), errors.Is(err, visitor.ErrExitBeforeEntry),
		errors.Is(err, registration.ErrSubmitInFlight), errors.Is(err, registration.ErrTooManyDrafts):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, registration.ErrUnknownField), errors.Is(err, capture.ErrUnknownHandle):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, capture.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, capture.ErrUnsupportedImage):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, capture.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.As(err, &se), errors.As(err, &store), errors.As(err, &ee):
		s.Log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		s.Log.WithError(err).Error("unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
