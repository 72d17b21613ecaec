package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Marga-Ghale/group-calendar-backend/internal/email"
	"github.com/Marga-Ghale/group-calendar-backend/internal/membership"
	"github.com/Marga-Ghale/group-calendar-backend/internal/repository"
	"github.com/Marga-Ghale/group-calendar-backend/internal/socket"
)

// InvitationMailer queues invitation emails for addresses that have no
// account yet. email.EmailQueue implements it.
type InvitationMailer interface {
	QueueGroupInvitation(to string, data email.GroupInvitationData)
}

// ============================================
// Invitation Service
// ============================================

type InvitationService interface {
	// Invite records an invite for email. If an account with that email
	// exists it is admitted as a member in the same call; otherwise the
	// invite stays pending.
	Invite(ctx context.Context, groupID, callerID, email string) (*GroupDetail, error)
	// RemoveMember removes email from the members or the pending invites.
	// The leader cannot be removed.
	RemoveMember(ctx context.Context, groupID, callerID, email string) (*GroupDetail, error)
}

type invitationService struct {
	groupRepo   repository.GroupRepository
	userRepo    repository.UserRepository
	permissions PermissionService
	mailer      InvitationMailer
	broadcaster *socket.Broadcaster
	frontendURL string
}

func NewInvitationService(
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	permissions PermissionService,
	mailer InvitationMailer,
	broadcaster *socket.Broadcaster,
	frontendURL string,
) InvitationService {
	return &invitationService{
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		permissions: permissions,
		mailer:      mailer,
		broadcaster: broadcaster,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (s *invitationService) Invite(ctx context.Context, groupID, callerID, address string) (*GroupDetail, error) {
	address = membership.NormalizeEmail(address)
	if address == "" {
		return nil, validationError("Email is required")
	}

	group, err := findGroup(ctx, s.groupRepo, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(group, callerID, ActionInvite); err != nil {
		return nil, err
	}

	roster := group.Roster()
	if err := roster.Invite(address, time.Now()); err != nil {
		return nil, rosterError(err)
	}
	group.SetRoster(roster)
	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to record invite: %w", err)
	}

	invitee, err := s.userRepo.FindByEmail(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to look up invitee: %w", err)
	}

	if invitee == nil {
		s.sendInvitationEmail(ctx, group, callerID, address)
		return groupDetail(ctx, s.userRepo, group)
	}

	// Known account: skip the pending state.
	if err := s.userRepo.AddGroup(ctx, invitee.ID, group.ID); err != nil {
		return nil, fmt.Errorf("failed to link group to invitee: %w", err)
	}
	if err := roster.Admit(address, invitee.ID, invitee.Name, time.Now()); err != nil {
		return nil, rosterError(err)
	}
	group.SetRoster(roster)
	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to admit invitee: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMemberAdded(group.ID, invitee.ID, map[string]interface{}{
			"groupId": group.ID,
			"userId":  invitee.ID,
			"email":   address,
			"name":    invitee.Name,
		}, callerID)
	}

	return groupDetail(ctx, s.userRepo, group)
}

func (s *invitationService) RemoveMember(ctx context.Context, groupID, callerID, address string) (*GroupDetail, error) {
	address = membership.NormalizeEmail(address)
	if address == "" {
		return nil, validationError("Email is required")
	}

	group, err := findGroup(ctx, s.groupRepo, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(group, callerID, ActionRemoveMember); err != nil {
		return nil, err
	}

	roster := group.Roster()
	member, isMember := roster.Lookup(address)
	if isMember && member.UserID == group.LeaderID {
		return nil, ErrCannotRemoveLeader
	}

	prev := roster.Remove(address)
	if prev == membership.StateNone {
		return groupDetail(ctx, s.userRepo, group)
	}
	group.SetRoster(roster)
	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}

	var removedUserID string
	if prev == membership.StateMember {
		removedUserID = s.unlinkMember(ctx, group.ID, member)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMemberRemoved(group.ID, removedUserID, map[string]interface{}{
			"groupId": group.ID,
			"userId":  removedUserID,
			"email":   address,
			"state":   prev.String(),
		}, callerID)
	}

	return groupDetail(ctx, s.userRepo, group)
}

// unlinkMember strips the group from the removed member's account, resolving
// the account by email when the entry has no user id. It returns the account
// id, or "" when there is none.
func (s *invitationService) unlinkMember(ctx context.Context, groupID string, member membership.Member) string {
	userID := member.UserID
	if userID == "" {
		user, err := s.userRepo.FindByEmail(ctx, member.Email)
		if err != nil {
			slog.Warn("failed to resolve removed member", "group_id", groupID, "email", member.Email, "error", err)
			return ""
		}
		if user == nil {
			return ""
		}
		userID = user.ID
	}
	if err := s.userRepo.RemoveGroup(ctx, userID, groupID); err != nil {
		slog.Warn("failed to unlink group from removed member",
			"group_id", groupID, "user_id", userID, "error", err)
	}
	return userID
}

func (s *invitationService) sendInvitationEmail(ctx context.Context, group *repository.Group, inviterID, address string) {
	if s.mailer == nil {
		return
	}
	inviter := "A group leader"
	if u, err := s.userRepo.FindByID(ctx, inviterID); err == nil && u != nil {
		inviter = u.Name
	}
	s.mailer.QueueGroupInvitation(address, email.GroupInvitationData{
		GroupName:  group.Name,
		GroupColor: group.Color,
		InvitedBy:  inviter,
		SignupURL:  s.frontendURL + "/register?email=" + url.QueryEscape(address),
	})
}

func rosterError(err error) error {
	switch {
	case errors.Is(err, membership.ErrAlreadyMember):
		return ErrAlreadyMember
	case errors.Is(err, membership.ErrAlreadyInvited):
		return ErrAlreadyInvited
	case errors.Is(err, membership.ErrInvalidEmail):
		return validationError("Email is required")
	default:
		return fmt.Errorf("roster update failed: %w", err)
	}
}
