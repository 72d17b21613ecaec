package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/group-calendar-backend/internal/api/middleware"
	"github.com/Marga-Ghale/group-calendar-backend/internal/models"
	"github.com/Marga-Ghale/group-calendar-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// ============================================
// Group Handler
// ============================================

type GroupHandler struct {
	groupService      service.GroupService
	invitationService service.InvitationService
}

func (h *GroupHandler) List(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	details, err := h.groupService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.GroupResponse, len(details))
	for i, d := range details {
		response[i] = toGroupResponse(d)
	}
	c.JSON(http.StatusOK, response)
}

func (h *GroupHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CreateGroupRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.groupService.Create(c.Request.Context(), userID, req.Name, req.Color)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(detail))
}

func (h *GroupHandler) Get(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	detail, err := h.groupService.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(detail))
}

func (h *GroupHandler) Update(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.UpdateGroupRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.groupService.Update(c.Request.Context(), c.Param("id"), userID, req.Name, req.Color)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(detail))
}

func (h *GroupHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.groupService.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleServiceError(c, err)
		return
	}
	respondMsg(c, http.StatusOK, "Group removed")
}

func (h *GroupHandler) Invite(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.InviteRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.invitationService.Invite(c.Request.Context(), c.Param("id"), userID, req.Email)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(detail))
}

// RemoveMember removes a member or cancels a pending invite, keyed by the
// email in the path.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	detail, err := h.invitationService.RemoveMember(c.Request.Context(), c.Param("id"), userID, c.Param("email"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(detail))
}
