package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "api", "production")

	log.Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "api", line["application"])
	assert.Equal(t, "production", line["environment"])
}

func TestNewDevWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "worker", "dev")

	log.Debug("details")

	assert.Contains(t, buf.String(), "msg=details")
	assert.Contains(t, buf.String(), "application=worker")
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "api", "dev")

	r := gin.New()
	r.Use(RequestLogger(log, "/healthz"))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, buf.String())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	out := buf.String()
	assert.True(t, strings.Contains(out, "level=warning"), out)
	assert.Contains(t, out, "status=404")
}
