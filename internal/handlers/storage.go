package handlers

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PLAYER1-r7/multicloud-auto-deploy/internal/backend/local"
)

// maxUploadBytes matches the image size cap the upload flow promises.
const maxUploadBytes = 7 * 1024 * 1024

// StorageHandler serves the local object store: signed PUT uploads and
// public GET reads. Only registered when the local backend is active; the
// cloud backends hand out provider-signed URLs instead.
type StorageHandler struct {
	store  *local.Storage
	logger *zap.Logger
}

func NewStorageHandler(store *local.Storage, logger *zap.Logger) *StorageHandler {
	return &StorageHandler{store: store, logger: logger}
}

// Put handles PUT /storage/*key, authorized by the HMAC token issued with
// the upload URL.
func (h *StorageHandler) Put(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.store.VerifyPut(key, c.Query("expires"), c.Query("token")); err != nil {
		h.logger.Warn("rejected upload", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusForbidden, gin.H{"message": err.Error()})
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	if err := h.store.Save(key, body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("rejected oversize upload", zap.String("key", key))
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Object too large"})
			return
		}
		h.logger.Error("failed to store upload", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to store object"})
		return
	}
	c.Status(http.StatusOK)
}

// Get handles GET /storage/*key.
func (h *StorageHandler) Get(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	r, err := h.store.Open(key)
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Object not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to open object", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to read object"})
		return
	}
	defer r.Close()

	c.Header("Content-Type", "image/jpeg")
	c.Status(http.StatusOK)
	io.Copy(c.Writer, r)
}
