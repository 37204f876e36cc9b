package handler

import (
	"net/http"

	"github.com/formhub/backend/internal/application/files"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileHandler streams uploaded submission files
type FileHandler struct {
	BaseHandler
	store  files.Store
	logger *zap.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(store files.Store, logger *zap.Logger) *FileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileHandler{store: store, logger: logger}
}

// View handles GET /files/:id/view. Images and PDFs are served inline,
// everything else as an attachment.
func (h *FileHandler) View(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	rc, ok := h.requestContext(c)
	if !ok {
		return
	}

	d, err := files.NewViewService(rc, h.store, h.logger).Open(c.Request.Context(), actorID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer func() { _ = d.Object.Body.Close() }()

	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, d.Object.Size, d.ContentType(), d.Object.Body, map[string]string{
		"Content-Disposition":    d.Disposition,
		"X-Content-Type-Options": "nosniff",
	})
}
