package handlers

import (
	"fmt"
	"net/http"

	"github.com/Marga-Ghale/group-calendar-backend/internal/api/middleware"
	"github.com/Marga-Ghale/group-calendar-backend/internal/models"
	"github.com/Marga-Ghale/group-calendar-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// ============================================
// Event Handler
// ============================================

type EventHandler struct {
	eventService service.EventService
}

// List returns the events of every group the caller belongs to.
func (h *EventHandler) List(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	details, err := h.eventService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponses(details))
}

func (h *EventHandler) ListForGroup(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	details, err := h.eventService.ListForGroup(c.Request.Context(), c.Param("groupId"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponses(details))
}

// ExportICS serves a group's events as an iCalendar file.
func (h *EventHandler) ExportICS(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	groupID := c.Param("groupId")
	data, err := h.eventService.ExportGroupICS(c.Request.Context(), groupID, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="group-%s.ics"`, groupID))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

func (h *EventHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.eventService.Create(c.Request.Context(), userID, service.EventInput{
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
		AllDay:      req.AllDay,
		GroupID:     req.GroupID,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponse(detail))
}

func (h *EventHandler) Update(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.UpdateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.eventService.Update(c.Request.Context(), c.Param("id"), userID, service.EventPatch{
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
		AllDay:      req.AllDay,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponse(detail))
}

func (h *EventHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.eventService.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleServiceError(c, err)
		return
	}
	respondMsg(c, http.StatusOK, "Event removed")
}
