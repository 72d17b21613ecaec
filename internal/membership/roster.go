// Package membership tracks who belongs to a group.
//
// Every email address is in exactly one state with respect to a group:
// not associated, invited, or a member. A Roster holds the members and
// pending invites of one group keyed by normalized email, so an address can
// never sit in both lists at once.
package membership

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrAlreadyMember  = errors.New("already a member")
	ErrAlreadyInvited = errors.New("already invited")
	ErrNotInvited     = errors.New("not invited")
	ErrInvalidEmail   = errors.New("email is required")
)

// State is the relation between an email address and a group.
type State int

const (
	StateNone State = iota
	StateInvited
	StateMember
)

func (s State) String() string {
	switch s {
	case StateInvited:
		return "invited"
	case StateMember:
		return "member"
	default:
		return "none"
	}
}

// Member is a roster entry. UserID is empty when the entry was recorded
// without a resolved account.
type Member struct {
	UserID   string    `json:"userId,omitempty" bson:"user_id,omitempty"`
	Email    string    `json:"email" bson:"email"`
	Name     string    `json:"name" bson:"name"`
	JoinedAt time.Time `json:"joinedAt" bson:"joined_at"`
}

// Invite is a pending invitation for an email address.
type Invite struct {
	Email     string    `json:"email" bson:"email"`
	InvitedAt time.Time `json:"invitedAt" bson:"invited_at"`
}

type entry struct {
	state  State
	member Member
	invite Invite
}

// Roster is the per-email state of one group. The zero value is not usable;
// build one with NewRoster.
type Roster struct {
	order   []string
	entries map[string]*entry
}

// NormalizeEmail is the key used to compare addresses.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewRoster loads stored lists. Duplicate emails keep their first member
// entry, and an invite for an address that is already a member is dropped.
func NewRoster(members []Member, invites []Invite) *Roster {
	r := &Roster{entries: make(map[string]*entry, len(members)+len(invites))}
	for _, m := range members {
		key := NormalizeEmail(m.Email)
		if key == "" {
			continue
		}
		if _, ok := r.entries[key]; ok {
			continue
		}
		m.Email = key
		r.put(key, &entry{state: StateMember, member: m})
	}
	for _, inv := range invites {
		key := NormalizeEmail(inv.Email)
		if key == "" {
			continue
		}
		if _, ok := r.entries[key]; ok {
			continue
		}
		inv.Email = key
		r.put(key, &entry{state: StateInvited, invite: inv})
	}
	return r
}

func (r *Roster) put(key string, e *entry) {
	r.entries[key] = e
	r.order = append(r.order, key)
}

func (r *Roster) drop(key string) {
	delete(r.entries, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// State returns the current state of email.
func (r *Roster) State(email string) State {
	if e, ok := r.entries[NormalizeEmail(email)]; ok {
		return e.state
	}
	return StateNone
}

// Invite moves email from none to invited.
func (r *Roster) Invite(email string, at time.Time) error {
	key := NormalizeEmail(email)
	if key == "" {
		return ErrInvalidEmail
	}
	switch r.State(key) {
	case StateMember:
		return ErrAlreadyMember
	case StateInvited:
		return ErrAlreadyInvited
	}
	r.put(key, &entry{state: StateInvited, invite: Invite{Email: key, InvitedAt: at}})
	return nil
}

// Admit resolves a pending invite into membership for the given account.
// The new member is appended after the existing ones.
func (r *Roster) Admit(email, userID, name string, at time.Time) error {
	key := NormalizeEmail(email)
	switch r.State(key) {
	case StateMember:
		return ErrAlreadyMember
	case StateNone:
		return ErrNotInvited
	}
	r.drop(key)
	r.put(key, &entry{state: StateMember, member: Member{UserID: userID, Email: key, Name: name, JoinedAt: at}})
	return nil
}

// Join adds a member directly, without an invite. Used when a group is
// created.
func (r *Roster) Join(email, userID, name string, at time.Time) error {
	key := NormalizeEmail(email)
	if key == "" {
		return ErrInvalidEmail
	}
	switch r.State(key) {
	case StateMember:
		return ErrAlreadyMember
	case StateInvited:
		return ErrAlreadyInvited
	}
	r.put(key, &entry{state: StateMember, member: Member{UserID: userID, Email: key, Name: name, JoinedAt: at}})
	return nil
}

// Remove returns email to the none state from either list and reports the
// state it left. Removing an unknown address is a no-op.
func (r *Roster) Remove(email string) State {
	key := NormalizeEmail(email)
	prev := r.State(key)
	if prev != StateNone {
		r.drop(key)
	}
	return prev
}

// Lookup returns the member entry for email.
func (r *Roster) Lookup(email string) (Member, bool) {
	e, ok := r.entries[NormalizeEmail(email)]
	if !ok || e.state != StateMember {
		return Member{}, false
	}
	return e.member, true
}

// HasUser reports whether a member entry is bound to userID. Entries without
// a resolved account never match.
func (r *Roster) HasUser(userID string) bool {
	if userID == "" {
		return false
	}
	for _, e := range r.entries {
		if e.state == StateMember && e.member.UserID == userID {
			return true
		}
	}
	return false
}

// Members returns the member entries in roster order.
func (r *Roster) Members() []Member {
	out := make([]Member, 0, len(r.order))
	for _, key := range r.order {
		if e := r.entries[key]; e.state == StateMember {
			out = append(out, e.member)
		}
	}
	return out
}

// Invites returns the pending invites in roster order.
func (r *Roster) Invites() []Invite {
	out := make([]Invite, 0)
	for _, key := range r.order {
		if e := r.entries[key]; e.state == StateInvited {
			out = append(out, e.invite)
		}
	}
	return out
}

// UserIDs lists the accounts bound to member entries.
func (r *Roster) UserIDs() []string {
	var ids []string
	for _, m := range r.Members() {
		if m.UserID != "" {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}
