package models

import "time"

// ============================================
// Auth DTOs
// ============================================

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type AuthResponse struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refreshToken"`
	User         *UserResponse `json:"user,omitempty"`
}

// ============================================
// User DTOs
// ============================================

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Bio       string    `json:"bio"`
	Avatar    string    `json:"avatar,omitempty"`
	GroupIDs  []string  `json:"groups"`
	CreatedAt time.Time `json:"createdAt"`
}

type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Bio    *string `json:"bio"`
	Avatar *string `json:"avatar"`
}

// UserRef is the short form of a user embedded in other resources.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ============================================
// Group DTOs
// ============================================

type CreateGroupRequest struct {
	Name  string  `json:"name" binding:"required"`
	Color *string `json:"color"`
}

type UpdateGroupRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type InviteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// MemberResponse is a roster entry. User is null when the entry has no
// resolved account.
type MemberResponse struct {
	User     *UserRef  `json:"user"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

type InviteResponse struct {
	Email     string    `json:"email"`
	InvitedAt time.Time `json:"invitedAt"`
}

type GroupResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Color     string           `json:"color"`
	Leader    *UserRef         `json:"leader"`
	Members   []MemberResponse `json:"members"`
	Invites   []InviteResponse `json:"invites"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// GroupRef is the short form of a group embedded in events.
type GroupRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ============================================
// Event DTOs
// ============================================

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Start       time.Time `json:"start" binding:"required"`
	End         time.Time `json:"end" binding:"required"`
	AllDay      bool      `json:"allDay"`
	GroupID     string    `json:"groupId" binding:"required"`
}

// UpdateEventRequest distinguishes absent fields (nil) from present zero
// values such as an empty description or allDay:false.
type UpdateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
	AllDay      *bool      `json:"allDay"`
}

type EventResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
	Group       *GroupRef `json:"group"`
	CreatedBy   *UserRef  `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MessageResponse is the body of deletions and every error.
type MessageResponse struct {
	Msg string `json:"msg"`
}
