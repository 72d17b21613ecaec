package service

import (
	"errors"
	"strings"
	"unicode"

	"github.com/Marga-Ghale/group-calendar-backend/internal/config"
	"github.com/Marga-Ghale/group-calendar-backend/internal/repository"
	"github.com/Marga-Ghale/group-calendar-backend/internal/socket"
)

// Error kinds. Handlers map these to HTTP statuses with errors.Is.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Error carries a user-facing message and unwraps to its kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func validationError(msg string) error {
	return newError(ErrValidation, msg)
}

// hasControl reports whether s holds a line break or other control
// character. Names end up in mail headers and calendar feeds.
func hasControl(s string) bool {
	return strings.ContainsFunc(s, unicode.IsControl)
}

var (
	ErrUserNotFound       = newError(ErrNotFound, "User not found")
	ErrGroupNotFound      = newError(ErrNotFound, "Group not found")
	ErrEventNotFound      = newError(ErrNotFound, "Event not found")
	ErrUserExists         = newError(ErrValidation, "User already exists")
	ErrAlreadyMember      = newError(ErrConflict, "User is already a member of this group")
	ErrAlreadyInvited     = newError(ErrConflict, "User is already invited to this group")
	ErrCannotRemoveLeader = newError(ErrConflict, "Group leader cannot be removed")
)

// ============================================
// Services Container
// ============================================

type Services struct {
	Auth        AuthService
	User        UserService
	Permission  PermissionService
	Group       GroupService
	Invitation  InvitationService
	Event       EventService
	Broadcaster *socket.Broadcaster
}

// ServiceDeps contains all dependencies needed to create services.
// Mailer and Broadcaster are optional.
type ServiceDeps struct {
	Config      *config.Config
	Repos       *repository.Repositories
	Mailer      InvitationMailer
	Broadcaster *socket.Broadcaster
}

func NewServices(deps *ServiceDeps) *Services {
	permissionService := NewPermissionService()

	return &Services{
		Auth:       NewAuthService(deps.Config, deps.Repos.UserRepo),
		User:       NewUserService(deps.Repos.UserRepo),
		Permission: permissionService,
		Group: NewGroupService(
			deps.Repos.GroupRepo,
			deps.Repos.UserRepo,
			deps.Repos.EventRepo,
			permissionService,
			deps.Broadcaster,
		),
		Invitation: NewInvitationService(
			deps.Repos.GroupRepo,
			deps.Repos.UserRepo,
			permissionService,
			deps.Mailer,
			deps.Broadcaster,
			deps.Config.FrontendURL,
		),
		Event: NewEventService(
			deps.Repos.EventRepo,
			deps.Repos.GroupRepo,
			deps.Repos.UserRepo,
			permissionService,
			deps.Broadcaster,
		),
		Broadcaster: deps.Broadcaster,
	}
}
