package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"whatsapp-concierge/internal/media"
	"whatsapp-concierge/pkg/logging"
)

type FilesHandler struct {
	Files  *media.Store
	Logger *logging.Logger
}

func NewFilesHandler(files *media.Store, logger *logging.Logger) *FilesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &FilesHandler{Files: files, Logger: logger}
}

// Download streams a synthesized audio file once. The file is deleted when the
// response ends, whether or not the client read all of it.
func (h *FilesHandler) Download(c *gin.Context) {
	id := c.Param("id")
	file, err := h.Files.Claim(id)
	switch {
	case errors.Is(err, media.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid ID"})
		return
	case errors.Is(err, media.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Invalid or deleted file"})
		return
	case err != nil:
		h.Logger.Error("failed to open temp file", "file", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to read file"})
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			h.Logger.Warn("failed to delete temp file", "file", id, "error", err)
		}
	}()

	c.Header("Content-Length", strconv.FormatInt(file.Size, 10))
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		h.Logger.Warn("temp file stream interrupted", "file", id, "error", err)
	}
}
