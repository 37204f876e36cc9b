package handler

import (
	appform "github.com/formhub/backend/internal/application/form"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FormHandler handles form definitions
type FormHandler struct {
	BaseHandler
	logger *zap.Logger
}

// NewFormHandler creates a new form handler
func NewFormHandler(logger *zap.Logger) *FormHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormHandler{logger: logger}
}

func (h *FormHandler) service(c *gin.Context) (*appform.Service, bool) {
	rc, ok := h.requestContext(c)
	if !ok {
		return nil, false
	}
	return appform.NewService(rc, h.logger), true
}

// Create handles POST /forms
func (h *FormHandler) Create(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	var input appform.CreateFormInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.ValidationError(c, err)
		return
	}
	svc, ok := h.service(c)
	if !ok {
		return
	}

	f, err := svc.Create(c.Request.Context(), actorID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, appform.ToFormResponse(f))
}

// Get handles GET /forms/:id. Forms are public so respondents can render them.
func (h *FormHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	svc, ok := h.service(c)
	if !ok {
		return
	}

	f, err := svc.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appform.ToFormResponse(f))
}

// Update handles PUT /forms/:id
func (h *FormHandler) Update(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var input appform.UpdateFormInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.ValidationError(c, err)
		return
	}
	svc, ok := h.service(c)
	if !ok {
		return
	}

	f, err := svc.Update(c.Request.Context(), actorID, id, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appform.ToFormResponse(f))
}

// Delete handles DELETE /forms/:id
func (h *FormHandler) Delete(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	svc, ok := h.service(c)
	if !ok {
		return
	}

	if err := svc.Delete(c.Request.Context(), actorID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MessageResponse{Message: "Form deleted successfully"})
}

// ListByAdmin handles GET /admin/:id/forms
func (h *FormHandler) ListByAdmin(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	adminID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	page, ok := h.page(c, 100)
	if !ok {
		return
	}
	svc, ok := h.service(c)
	if !ok {
		return
	}

	forms, err := svc.ListByAdmin(c.Request.Context(), actorID, adminID, page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appform.ToFormResponses(forms))
}
