package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Marga-Ghale/group-calendar-backend/internal/membership"
	"github.com/Marga-Ghale/group-calendar-backend/internal/repository"
	"github.com/Marga-Ghale/group-calendar-backend/internal/socket"
)

// GroupDetail is a group together with the accounts it references, keyed by
// user id. Users holds the leader and every resolved member that still
// exists.
type GroupDetail struct {
	Group *repository.Group
	Users map[string]*repository.User
}

// ============================================
// Group Service
// ============================================

type GroupService interface {
	Create(ctx context.Context, creatorID, name string, color *string) (*GroupDetail, error)
	ListForUser(ctx context.Context, userID string) ([]*GroupDetail, error)
	Get(ctx context.Context, groupID, callerID string) (*GroupDetail, error)
	// Update applies the non-nil fields. Leader only.
	Update(ctx context.Context, groupID, callerID string, name, color *string) (*GroupDetail, error)
	// Delete removes the group, its events and every member's reference to
	// it. Leader only.
	Delete(ctx context.Context, groupID, callerID string) error
}

type groupService struct {
	groupRepo   repository.GroupRepository
	userRepo    repository.UserRepository
	eventRepo   repository.EventRepository
	permissions PermissionService
	broadcaster *socket.Broadcaster
}

func NewGroupService(
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	eventRepo repository.EventRepository,
	permissions PermissionService,
	broadcaster *socket.Broadcaster,
) GroupService {
	return &groupService{
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		eventRepo:   eventRepo,
		permissions: permissions,
		broadcaster: broadcaster,
	}
}

func (s *groupService) Create(ctx context.Context, creatorID, name string, color *string) (*GroupDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("Group name is required")
	}
	if hasControl(name) {
		return nil, validationError("Group name must not contain control characters")
	}
	groupColor := DefaultGroupColor
	if color != nil && strings.TrimSpace(*color) != "" {
		c, err := normalizeColor(*color)
		if err != nil {
			return nil, err
		}
		groupColor = c
	}

	creator, err := s.userRepo.FindByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load creator: %w", err)
	}
	if creator == nil {
		return nil, ErrUserNotFound
	}

	roster := membership.NewRoster(nil, nil)
	if err := roster.Join(creator.Email, creator.ID, creator.Name, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to seed roster: %w", err)
	}

	group := &repository.Group{
		Name:     name,
		Color:    groupColor,
		LeaderID: creator.ID,
	}
	group.SetRoster(roster)

	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	if err := s.userRepo.AddGroup(ctx, creator.ID, group.ID); err != nil {
		return nil, fmt.Errorf("failed to link group to creator: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastGroupCreated(creator.ID, groupPayload(group))
	}

	return &GroupDetail{Group: group, Users: map[string]*repository.User{creator.ID: creator}}, nil
}

func (s *groupService) ListForUser(ctx context.Context, userID string) ([]*GroupDetail, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	groups, err := s.groupRepo.FindByIDs(ctx, user.GroupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}

	users, err := s.loadUsers(ctx, groups...)
	if err != nil {
		return nil, err
	}

	details := make([]*GroupDetail, 0, len(groups))
	for _, g := range groups {
		details = append(details, &GroupDetail{Group: g, Users: users})
	}
	return details, nil
}

func (s *groupService) Get(ctx context.Context, groupID, callerID string) (*GroupDetail, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(group, callerID, ActionViewGroup); err != nil {
		return nil, err
	}
	return s.detail(ctx, group)
}

func (s *groupService) Update(ctx context.Context, groupID, callerID string, name, color *string) (*GroupDetail, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(group, callerID, ActionUpdateGroup); err != nil {
		return nil, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, validationError("Group name is required")
		}
		if hasControl(trimmed) {
			return nil, validationError("Group name must not contain control characters")
		}
		group.Name = trimmed
	}
	if color != nil {
		c, err := normalizeColor(*color)
		if err != nil {
			return nil, err
		}
		group.Color = c
	}

	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastGroupUpdated(group.ID, groupPayload(group), callerID)
	}

	return s.detail(ctx, group)
}

func (s *groupService) Delete(ctx context.Context, groupID, callerID string) error {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.permissions.Authorize(group, callerID, ActionDeleteGroup); err != nil {
		return err
	}

	// Cleanup is best effort: a failed member write is logged and the group
	// is still deleted.
	for _, userID := range group.Roster().UserIDs() {
		if err := s.userRepo.RemoveGroup(ctx, userID, group.ID); err != nil {
			slog.Warn("failed to unlink group from member",
				"group_id", group.ID, "user_id", userID, "error", err)
		}
	}
	if n, err := s.eventRepo.DeleteByGroup(ctx, group.ID); err != nil {
		slog.Warn("failed to delete group events", "group_id", group.ID, "error", err)
	} else if n > 0 {
		slog.Debug("deleted group events", "group_id", group.ID, "count", n)
	}

	if err := s.groupRepo.Delete(ctx, group.ID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastGroupDeleted(group.ID, callerID)
	}
	return nil
}

func (s *groupService) loadGroup(ctx context.Context, groupID string) (*repository.Group, error) {
	return findGroup(ctx, s.groupRepo, groupID)
}

func (s *groupService) detail(ctx context.Context, group *repository.Group) (*GroupDetail, error) {
	return groupDetail(ctx, s.userRepo, group)
}

func (s *groupService) loadUsers(ctx context.Context, groups ...*repository.Group) (map[string]*repository.User, error) {
	return loadGroupUsers(ctx, s.userRepo, groups...)
}

// ============================================
// Shared helpers
// ============================================

func findGroup(ctx context.Context, groups repository.GroupRepository, groupID string) (*repository.Group, error) {
	group, err := groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

func groupDetail(ctx context.Context, users repository.UserRepository, group *repository.Group) (*GroupDetail, error) {
	byID, err := loadGroupUsers(ctx, users, group)
	if err != nil {
		return nil, err
	}
	return &GroupDetail{Group: group, Users: byID}, nil
}

// loadGroupUsers fetches the leaders and resolved members of groups in one
// query.
func loadGroupUsers(ctx context.Context, users repository.UserRepository, groups ...*repository.Group) (map[string]*repository.User, error) {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, g := range groups {
		add(g.LeaderID)
		for _, m := range g.Members {
			add(m.UserID)
		}
	}

	found, err := users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load group users: %w", err)
	}
	byID := make(map[string]*repository.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	return byID, nil
}

func groupPayload(g *repository.Group) map[string]interface{} {
	return map[string]interface{}{
		"id":    g.ID,
		"name":  g.Name,
		"color": g.Color,
	}
}
