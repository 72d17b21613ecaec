package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Marga-Ghale/group-calendar-backend/internal/models"
	"github.com/Marga-Ghale/group-calendar-backend/internal/repository"
	"github.com/Marga-Ghale/group-calendar-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Auth  *AuthHandler
	User  *UserHandler
	Group *GroupHandler
	Event *EventHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Auth:  &AuthHandler{authService: services.Auth},
		User:  &UserHandler{userService: services.User},
		Group: &GroupHandler{groupService: services.Group, invitationService: services.Invitation},
		Event: &EventHandler{eventService: services.Event},
	}
}

// ============================================
// Errors
// ============================================

func respondMsg(c *gin.Context, status int, msg string) {
	c.JSON(status, models.MessageResponse{Msg: msg})
}

// handleServiceError maps a service error to a status and {"msg"} body.
func handleServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		// RequestLogger reports it.
		_ = c.Error(err)
		respondMsg(c, status, "Server error")
		return
	}

	msg := err.Error()
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		msg = svcErr.Msg
	} else if errors.Is(err, service.ErrInvalidCredentials) {
		msg = "Invalid credentials"
	} else if errors.Is(err, service.ErrInvalidToken) {
		msg = "Token is not valid"
	}
	respondMsg(c, status, msg)
}

// bindJSON binds the body into req, answering 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondMsg(c, http.StatusBadRequest, bindErrorMessage(err))
		return false
	}
	return true
}

func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	field := fieldLabel(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Please include a valid email"
	default:
		return field + " is invalid"
	}
}

// fieldLabel turns a struct field name into sentence case: "GroupID" becomes
// "Group".
func fieldLabel(name string) string {
	name = strings.TrimSuffix(name, "ID")
	if name == "" {
		return "Field"
	}
	return name
}

// ============================================
// Response Mappers
// ============================================

func toUserResponse(u *repository.User) models.UserResponse {
	groups := u.GroupIDs
	if groups == nil {
		groups = []string{}
	}
	return models.UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Bio:       u.Bio,
		Avatar:    u.Avatar,
		GroupIDs:  groups,
		CreatedAt: u.CreatedAt,
	}
}

func toUserRef(u *repository.User) *models.UserRef {
	if u == nil {
		return nil
	}
	return &models.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

func toGroupResponse(d *service.GroupDetail) models.GroupResponse {
	g := d.Group
	resp := models.GroupResponse{
		ID:        g.ID,
		Name:      g.Name,
		Color:     g.Color,
		Leader:    toUserRef(d.Users[g.LeaderID]),
		Members:   make([]models.MemberResponse, 0, len(g.Members)),
		Invites:   make([]models.InviteResponse, 0, len(g.Invites)),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	for _, m := range g.Members {
		member := models.MemberResponse{Email: m.Email, Name: m.Name, JoinedAt: m.JoinedAt}
		if m.UserID != "" {
			member.User = toUserRef(d.Users[m.UserID])
		}
		resp.Members = append(resp.Members, member)
	}
	for _, inv := range g.Invites {
		resp.Invites = append(resp.Invites, models.InviteResponse{Email: inv.Email, InvitedAt: inv.InvitedAt})
	}
	return resp
}

func toEventResponse(d *service.EventDetail) models.EventResponse {
	e := d.Event
	resp := models.EventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start,
		End:         e.End,
		AllDay:      e.AllDay,
		CreatedBy:   toUserRef(d.Creator),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if d.Group != nil {
		resp.Group = &models.GroupRef{ID: d.Group.ID, Name: d.Group.Name, Color: d.Group.Color}
	}
	return resp
}

func toEventResponses(details []*service.EventDetail) []models.EventResponse {
	out := make([]models.EventResponse, 0, len(details))
	for _, d := range details {
		out = append(out, toEventResponse(d))
	}
	return out
}
