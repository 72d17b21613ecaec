// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Marga-Ghale/group-calendar-backend/internal/membership"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrDuplicateEmail is returned when a user is created with an email that is
// already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ============================================
// Models / Entities
// ============================================

type User struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Password  string    `json:"-" bson:"password"`
	Bio       string    `json:"bio" bson:"bio"`
	Avatar    string    `json:"avatar" bson:"avatar"`
	GroupIDs  []string  `json:"groupIds" bson:"group_ids"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

type RefreshToken struct {
	Token     string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Group owns its member and invite lists. Members is the source of truth for
// membership; User.GroupIDs is an index kept in step with it.
type Group struct {
	ID        string              `json:"id" bson:"_id"`
	Name      string              `json:"name" bson:"name"`
	Color     string              `json:"color" bson:"color"`
	LeaderID  string              `json:"leaderId" bson:"leader_id"`
	Members   []membership.Member `json:"members" bson:"members"`
	Invites   []membership.Invite `json:"invites" bson:"invites"`
	CreatedAt time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time           `json:"updatedAt" bson:"updated_at"`
}

// Roster returns the membership state of the group.
func (g *Group) Roster() *membership.Roster {
	return membership.NewRoster(g.Members, g.Invites)
}

// SetRoster stores the roster's lists back on the group.
func (g *Group) SetRoster(r *membership.Roster) {
	g.Members = r.Members()
	g.Invites = r.Invites()
}

type Event struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Start       time.Time `json:"start" bson:"start"`
	End         time.Time `json:"end" bson:"end"`
	AllDay      bool      `json:"allDay" bson:"all_day"`
	GroupID     string    `json:"groupId" bson:"group_id"`
	CreatedBy   string    `json:"createdBy" bson:"created_by"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

// ============================================
// Repository Interfaces
// ============================================
//
// Find methods return (nil, nil) when the record does not exist.

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*User, error)
	// Update writes name, email, bio and avatar.
	Update(ctx context.Context, user *User) error
	AddGroup(ctx context.Context, userID, groupID string) error
	RemoveGroup(ctx context.Context, userID, groupID string) error
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type GroupRepository interface {
	Create(ctx context.Context, group *Group) error
	FindByID(ctx context.Context, id string) (*Group, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Group, error)
	// Update replaces name, color, members and invites.
	Update(ctx context.Context, group *Group) error
	Delete(ctx context.Context, id string) error
}

type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	FindByID(ctx context.Context, id string) (*Event, error)
	// FindByGroupIDs returns events ordered by start time.
	FindByGroupIDs(ctx context.Context, groupIDs []string) ([]*Event, error)
	Update(ctx context.Context, event *Event) error
	Delete(ctx context.Context, id string) error
	DeleteByGroup(ctx context.Context, groupID string) (int64, error)
}

// ============================================
// Repositories Container
// ============================================

type Repositories struct {
	UserRepo  UserRepository
	GroupRepo GroupRepository
	EventRepo EventRepository
}

// NewRepositories creates PostgreSQL-backed repositories.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepo:  NewUserRepository(pool),
		GroupRepo: NewGroupRepository(pool),
		EventRepo: NewEventRepository(pool),
	}
}

// NewMongoRepositories creates MongoDB-backed repositories and makes sure the
// indexes they rely on exist.
func NewMongoRepositories(ctx context.Context, db *mongo.Database) (*Repositories, error) {
	if err := ensureMongoIndexes(ctx, db); err != nil {
		return nil, err
	}
	return &Repositories{
		UserRepo:  &mongoUserRepository{users: db.Collection("users"), tokens: db.Collection("refresh_tokens")},
		GroupRepo: &mongoGroupRepository{groups: db.Collection("groups")},
		EventRepo: &mongoEventRepository{events: db.Collection("events")},
	}, nil
}

// NewMemoryRepositories creates process-local repositories, used for tests
// and STORE_DRIVER=memory.
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		UserRepo:  newInMemoryUserRepository(),
		GroupRepo: newInMemoryGroupRepository(),
		EventRepo: newInMemoryEventRepository(),
	}
}

// WithGroupCache wraps the group repository in a read-through cache.
func (r *Repositories) WithGroupCache(cache Cache, ttl time.Duration) *Repositories {
	r.GroupRepo = NewCachedGroupRepository(r.GroupRepo, cache, ttl)
	return r
}
