package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/apperr"
	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend"
)

// Handler combines all handler types
type Handler struct {
	Post    *PostHandler
	Profile *ProfileHandler
	Upload  *UploadHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(b backend.Backend, logger *zap.Logger) *Handler {
	return &Handler{
		Post:    &PostHandler{backend: b, logger: logger},
		Profile: &ProfileHandler{backend: b, logger: logger},
		Upload:  &UploadHandler{backend: b, logger: logger},
	}
}

// writeError maps any error onto the taxonomy and renders the JSON body.
// Client errors log at warn, server errors at error with full detail.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	ae := apperr.From(err)
	fields := []zap.Field{
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", ae.Status),
		zap.String("message", ae.Message),
	}
	if ae.IsClientError() {
		logger.Warn("request failed", fields...)
	} else {
		logger.Error("request failed", append(fields, zap.Error(err))...)
	}
	c.JSON(ae.Status, ae)
}
