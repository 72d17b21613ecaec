package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Marga-Ghale/group-calendar-backend/internal/membership"
	"github.com/google/uuid"
)

// In-memory repositories hand out copies so callers can never mutate stored
// records without going through Update.

// ============================================
// In-Memory User Repository
// ============================================

type inMemoryUserRepository struct {
	mu            sync.RWMutex
	users         map[string]*User
	refreshTokens map[string]*RefreshToken
}

func newInMemoryUserRepository() *inMemoryUserRepository {
	return &inMemoryUserRepository{
		users:         make(map[string]*User),
		refreshTokens: make(map[string]*RefreshToken),
	}
}

func copyUser(u *User) *User {
	c := *u
	c.GroupIDs = append([]string{}, u.GroupIDs...)
	return &c
}

func (r *inMemoryUserRepository) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.GroupIDs == nil {
		user.GroupIDs = []string{}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *inMemoryUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if user, ok := r.users[id]; ok {
		return copyUser(user), nil
	}
	return nil, nil
}

func (r *inMemoryUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return copyUser(user), nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepository) FindByIDs(ctx context.Context, ids []string) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := []*User{}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if user, ok := r.users[id]; ok {
			users = append(users, copyUser(user))
		}
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *inMemoryUserRepository) Update(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return nil
	}
	for id, u := range r.users {
		if id != user.ID && strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicateEmail
		}
	}
	stored.Name = user.Name
	stored.Email = user.Email
	stored.Bio = user.Bio
	stored.Avatar = user.Avatar
	stored.UpdatedAt = time.Now()
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *inMemoryUserRepository) AddGroup(ctx context.Context, userID, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return nil
	}
	for _, id := range user.GroupIDs {
		if id == groupID {
			return nil
		}
	}
	user.GroupIDs = append(user.GroupIDs, groupID)
	user.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryUserRepository) RemoveGroup(ctx context.Context, userID, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return nil
	}
	kept := user.GroupIDs[:0]
	for _, id := range user.GroupIDs {
		if id != groupID {
			kept = append(kept, id)
		}
	}
	user.GroupIDs = kept
	user.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryUserRepository) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token.CreatedAt = time.Now()
	c := *token
	r.refreshTokens[token.Token] = &c
	return nil
}

func (r *inMemoryUserRepository) FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rt, ok := r.refreshTokens[token]; ok {
		c := *rt
		return &c, nil
	}
	return nil, nil
}

func (r *inMemoryUserRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.refreshTokens, token)
	return nil
}

func (r *inMemoryUserRepository) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for token, rt := range r.refreshTokens {
		if rt.ExpiresAt.Before(now) {
			delete(r.refreshTokens, token)
			n++
		}
	}
	return n, nil
}

// ============================================
// In-Memory Group Repository
// ============================================

type inMemoryGroupRepository struct {
	mu     sync.RWMutex
	groups map[string]*Group
	seq    map[string]int
	next   int
}

func newInMemoryGroupRepository() *inMemoryGroupRepository {
	return &inMemoryGroupRepository{
		groups: make(map[string]*Group),
		seq:    make(map[string]int),
	}
}

func copyGroup(g *Group) *Group {
	c := *g
	c.Members = append([]membership.Member{}, g.Members...)
	c.Invites = append([]membership.Invite{}, g.Invites...)
	return &c
}

func (r *inMemoryGroupRepository) Create(ctx context.Context, group *Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	normalizeGroup(group)
	group.CreatedAt = time.Now()
	group.UpdatedAt = group.CreatedAt
	r.groups[group.ID] = copyGroup(group)
	r.seq[group.ID] = r.next
	r.next++
	return nil
}

func (r *inMemoryGroupRepository) FindByID(ctx context.Context, id string) (*Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if group, ok := r.groups[id]; ok {
		return copyGroup(group), nil
	}
	return nil, nil
}

func (r *inMemoryGroupRepository) FindByIDs(ctx context.Context, ids []string) ([]*Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := []*Group{}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if group, ok := r.groups[id]; ok {
			groups = append(groups, copyGroup(group))
		}
	}
	sort.Slice(groups, func(i, j int) bool { return r.seq[groups[i].ID] < r.seq[groups[j].ID] })
	return groups, nil
}

func (r *inMemoryGroupRepository) Update(ctx context.Context, group *Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.groups[group.ID]
	if !ok {
		return nil
	}
	normalizeGroup(group)
	group.UpdatedAt = time.Now()
	updated := copyGroup(group)
	updated.LeaderID = stored.LeaderID
	updated.CreatedAt = stored.CreatedAt
	r.groups[group.ID] = updated
	return nil
}

func (r *inMemoryGroupRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.groups, id)
	delete(r.seq, id)
	return nil
}

// ============================================
// In-Memory Event Repository
// ============================================

type inMemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]*Event
	seq    map[string]int
	next   int
}

func newInMemoryEventRepository() *inMemoryEventRepository {
	return &inMemoryEventRepository{
		events: make(map[string]*Event),
		seq:    make(map[string]int),
	}
}

func (r *inMemoryEventRepository) Create(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	c := *event
	r.events[event.ID] = &c
	r.seq[event.ID] = r.next
	r.next++
	return nil
}

func (r *inMemoryEventRepository) FindByID(ctx context.Context, id string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if event, ok := r.events[id]; ok {
		c := *event
		return &c, nil
	}
	return nil, nil
}

func (r *inMemoryEventRepository) FindByGroupIDs(ctx context.Context, groupIDs []string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}
	events := []*Event{}
	for _, event := range r.events {
		if wanted[event.GroupID] {
			c := *event
			events = append(events, &c)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return r.seq[events[i].ID] < r.seq[events[j].ID]
	})
	return events, nil
}

func (r *inMemoryEventRepository) Update(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.events[event.ID]
	if !ok {
		return nil
	}
	stored.Title = event.Title
	stored.Description = event.Description
	stored.Start = event.Start
	stored.End = event.End
	stored.AllDay = event.AllDay
	stored.UpdatedAt = event.UpdatedAt
	return nil
}

func (r *inMemoryEventRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.events, id)
	delete(r.seq, id)
	return nil
}

func (r *inMemoryEventRepository) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, event := range r.events {
		if event.GroupID == groupID {
			delete(r.events, id)
			delete(r.seq, id)
			n++
		}
	}
	return n, nil
}
