package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/apperr"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/middleware"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/models"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/validation"
)

type UploadHandler struct {
	backend backend.Backend
	logger  *zap.Logger
}

// CreateUploadURLs handles GET|POST /upload-urls (requires authentication).
// GET takes ?count=, POST takes a JSON body; both shapes exist in the wild.
func (h *UploadHandler) CreateUploadURLs(c *gin.Context) {
	user := middleware.CurrentUser(c)

	count, err := h.parseCount(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if err := validation.ValidateUploadCount(count); err != nil {
		writeError(c, h.logger, err)
		return
	}

	resp, err := h.backend.CreateUploadURLs(c.Request.Context(), user.UserID, count)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UploadHandler) parseCount(c *gin.Context) (int, error) {
	if c.Request.Method == http.MethodGet {
		raw := c.DefaultQuery("count", "1")
		count, err := strconv.Atoi(raw)
		if err != nil {
			return 0, apperr.Validation("count must be an integer")
		}
		return count, nil
	}

	var req models.UploadURLsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return 0, apperr.Validation("invalid request body")
	}
	return req.Count, nil
}
