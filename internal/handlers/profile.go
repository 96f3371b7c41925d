package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/apperr"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/middleware"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/validation"
)

type ProfileHandler struct {
	backend backend.Backend
	logger  *zap.Logger
}

// GetProfile handles GET /profile (requires authentication)
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)

	profile, err := h.backend.GetProfile(c.Request.Context(), user.UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if profile == nil {
		c.JSON(http.StatusOK, gin.H{"userId": user.UserID, "nickname": ""})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile handles POST /profile (requires authentication)
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	nickname, err := validation.ValidateNickname(req.Nickname)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	profile, err := h.backend.UpsertProfile(c.Request.Context(), user.UserID, nickname)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("profile updated", zap.String("userId", user.UserID))
	c.JSON(http.StatusOK, profile)
}
