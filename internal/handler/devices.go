package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dcvisitor/internal/auth"
	"dcvisitor/internal/device"
)

func (s *Server) registerDevice(c *gin.Context) {
	var req struct {
		DeviceID string `json:"device_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.Devices.Register(c.Request.Context(), req.DeviceID); err != nil {
		if err == device.ErrDeviceID {
			badRequest(c, err)
			return
		}
		s.fail(c, err)
		return
	}
	s.issue(c, req.DeviceID, http.StatusCreated)
}

func (s *Server) refreshDevice(c *gin.Context) {
	var req struct {
		DeviceID     string `json:"device_id" binding:"required"`
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	claims, err := s.Issuer.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil || claims.Subject != req.DeviceID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err := s.Devices.ConsumeRefreshToken(c.Request.Context(), req.DeviceID, req.RefreshToken); err != nil {
		if err == device.ErrTokenRejected {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		s.fail(c, err)
		return
	}
	s.issue(c, req.DeviceID, http.StatusOK)
}

func (s *Server) issue(c *gin.Context, deviceID string, status int) {
	tokens, err := s.Issuer.Issue(deviceID, auth.RoleKiosk)
	if err != nil {
		s.Log.WithError(err).Error("token issue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	if err := s.Devices.SaveRefreshToken(c.Request.Context(), deviceID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		s.fail(c, err)
		return
	}
	c.Set(auth.DeviceIDKey, deviceID)
	c.JSON(status, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}
