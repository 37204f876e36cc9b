package handler

import (
	"github.com/formhub/backend/internal/application/identity"
	"github.com/gin-gonic/gin"
)

// ListUnapprovedAdmins handles GET /super-admin/unapproved-admins
func (h *UserHandler) ListUnapprovedAdmins(c *gin.Context) {
	svc, actorID, ok := h.session(c)
	if !ok {
		return
	}

	admins, err := svc.ListUnapprovedAdmins(c.Request.Context(), actorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, identity.ToUserInfos(admins))
}

// ApproveAdmin handles POST /super-admin/admins/:id/approve
func (h *UserHandler) ApproveAdmin(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	svc, actorID, ok := h.session(c)
	if !ok {
		return
	}

	admin, err := svc.ApproveAdmin(c.Request.Context(), actorID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, identity.ToUserInfo(admin))
}

// RejectAdmin handles POST /super-admin/admins/:id/reject.
// The pending account is deleted.
func (h *UserHandler) RejectAdmin(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	svc, actorID, ok := h.session(c)
	if !ok {
		return
	}

	if err := svc.RejectAdmin(c.Request.Context(), actorID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MessageResponse{Message: "Admin registration rejected"})
}
