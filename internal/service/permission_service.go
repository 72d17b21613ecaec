package service

import (
	"github.com/Marga-Ghale/group-calendar-backend/internal/repository"
)

// ============================================
// Group Actions
// ============================================

type Action string

const (
	ActionViewGroup    Action = "group:view"
	ActionUpdateGroup  Action = "group:update"
	ActionInvite       Action = "group:invite"
	ActionRemoveMember Action = "group:remove_member"
	ActionDeleteGroup  Action = "group:delete"
	ActionViewEvents   Action = "event:view"
	ActionCreateEvent  Action = "event:create"
	ActionUpdateEvent  Action = "event:update"
	ActionDeleteEvent  Action = "event:delete"
)

type actionRule struct {
	leaderOnly bool
	denied     string
}

// Reading a group and writing its events needs membership; changing the
// group itself needs the leader.
var actionRules = map[Action]actionRule{
	ActionViewGroup:    {denied: "User not authorized to view this group"},
	ActionUpdateGroup:  {leaderOnly: true, denied: "Only group leader can update the group"},
	ActionInvite:       {leaderOnly: true, denied: "Only group leader can invite users"},
	ActionRemoveMember: {leaderOnly: true, denied: "Only group leader can remove members"},
	ActionDeleteGroup:  {leaderOnly: true, denied: "Only group leader can delete the group"},
	ActionViewEvents:   {denied: "User not authorized to view this group's events"},
	ActionCreateEvent:  {denied: "User not authorized to create events for this group"},
	ActionUpdateEvent:  {denied: "User not authorized to update events for this group"},
	ActionDeleteEvent:  {denied: "User not authorized to delete events for this group"},
}

// PermissionService decides what a user may do with a group. It has no side
// effects and never touches a store.
type PermissionService interface {
	IsMember(group *repository.Group, userID string) bool
	IsLeader(group *repository.Group, userID string) bool
	// Authorize returns nil or an ErrUnauthorized-kind error.
	Authorize(group *repository.Group, userID string, action Action) error
}

type permissionService struct{}

func NewPermissionService() PermissionService {
	return &permissionService{}
}

func (s *permissionService) IsMember(group *repository.Group, userID string) bool {
	if group == nil || userID == "" {
		return false
	}
	for _, m := range group.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (s *permissionService) IsLeader(group *repository.Group, userID string) bool {
	return group != nil && userID != "" && group.LeaderID == userID
}

func (s *permissionService) Authorize(group *repository.Group, userID string, action Action) error {
	rule, ok := actionRules[action]
	if !ok {
		return newError(ErrUnauthorized, "User not authorized")
	}
	allowed := s.IsMember(group, userID)
	if rule.leaderOnly {
		allowed = s.IsLeader(group, userID)
	}
	if !allowed {
		return newError(ErrUnauthorized, rule.denied)
	}
	return nil
}
