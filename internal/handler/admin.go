package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// confirmPhrase must accompany a request to delete every record.
const confirmPhrase = "DELETE"

func (s *Server) stats(c *gin.Context) {
	st, err := s.Visitors.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ping checks every dependency and reports each one.
func (s *Server) ping(c *gin.Context) {
	body := gin.H{}
	ok := true
	for name, check := range s.Checks {
		if err := check(c.Request.Context()); err != nil {
			body[name] = err.Error()
			ok = false
			continue
		}
		body[name] = "ok"
	}
	if !ok {
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// clearVisitors deletes records older than older_than_days, or every record
// when all=true and confirm=DELETE.
func (s *Server) clearVisitors(c *gin.Context) {
	ctx := c.Request.Context()
	log := s.Log.WithField("device_id", deviceID(c))

	if all, _ := strconv.ParseBool(c.Query("all")); all {
		if c.Query("confirm") != confirmPhrase {
			badRequest(c, errors.New("confirm=DELETE is required to clear all records"))
			return
		}
		n, err := s.Visitors.ClearAll(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		log.WithField("deleted", n).Warn("all visitor records cleared")
		c.JSON(http.StatusOK, gin.H{"deleted": n})
		return
	}

	days, err := strconv.Atoi(c.Query("older_than_days"))
	if err != nil || days < 1 {
		badRequest(c, errors.New("older_than_days must be a positive integer"))
		return
	}
	n, err := s.Visitors.ClearOlderThan(ctx, days)
	if err != nil {
		s.fail(c, err)
		return
	}
	log.WithFields(logrus.Fields{"deleted": n, "older_than_days": days}).Info("old visitor records cleared")
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
