package membership

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func leaderRoster(t *testing.T) *Roster {
	t.Helper()
	r := NewRoster(nil, nil)
	if err := r.Join("a@example.com", "user-a", "Alice", t0); err != nil {
		t.Fatalf("Join: %v", err)
	}
	return r
}

func emails(ms []Member) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Email
	}
	return out
}

func TestInviteTransitions(t *testing.T) {
	r := leaderRoster(t)

	if err := r.Invite("  B@Example.com ", t0); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if got := r.State("b@example.com"); got != StateInvited {
		t.Fatalf("State = %v, want invited", got)
	}

	tests := []struct {
		name  string
		email string
		want  error
	}{
		{"member", "a@example.com", ErrAlreadyMember},
		{"member case-insensitive", "A@EXAMPLE.COM", ErrAlreadyMember},
		{"pending", "b@example.com", ErrAlreadyInvited},
		{"blank", "   ", ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Invite(tt.email, t0); !errors.Is(err, tt.want) {
				t.Errorf("Invite(%q) = %v, want %v", tt.email, err, tt.want)
			}
		})
	}

	if n := len(r.Members()); n != 1 {
		t.Errorf("members = %d, want 1", n)
	}
	if n := len(r.Invites()); n != 1 {
		t.Errorf("invites = %d, want 1", n)
	}
}

func TestAdmitMovesInviteToMembers(t *testing.T) {
	r := leaderRoster(t)
	_ = r.Invite("b@example.com", t0)

	if err := r.Admit("b@example.com", "user-b", "Bob", t0.Add(time.Minute)); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if got := r.State("b@example.com"); got != StateMember {
		t.Fatalf("State = %v, want member", got)
	}
	if inv := r.Invites(); len(inv) != 0 {
		t.Errorf("invites = %v, want empty", inv)
	}
	m, ok := r.Lookup("b@example.com")
	if !ok || m.UserID != "user-b" || m.Name != "Bob" {
		t.Errorf("Lookup = %+v, %v", m, ok)
	}
	if !r.HasUser("user-b") {
		t.Error("HasUser(user-b) = false")
	}

	if err := r.Admit("b@example.com", "user-b", "Bob", t0); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("second Admit = %v, want ErrAlreadyMember", err)
	}
	if err := r.Admit("c@example.com", "user-c", "Cat", t0); !errors.Is(err, ErrNotInvited) {
		t.Errorf("Admit without invite = %v, want ErrNotInvited", err)
	}
}

func TestAdmitAppendsAfterExistingMembers(t *testing.T) {
	r := leaderRoster(t)
	_ = r.Invite("b@example.com", t0)
	_ = r.Join("c@example.com", "user-c", "Cat", t0)
	_ = r.Admit("b@example.com", "user-b", "Bob", t0)

	want := []string{"a@example.com", "c@example.com", "b@example.com"}
	if got := emails(r.Members()); !reflect.DeepEqual(got, want) {
		t.Errorf("members = %v, want %v", got, want)
	}
}

func TestRemove(t *testing.T) {
	r := leaderRoster(t)
	_ = r.Invite("b@example.com", t0)
	_ = r.Join("c@example.com", "user-c", "Cat", t0)

	if prev := r.Remove("B@example.com"); prev != StateInvited {
		t.Errorf("Remove(invitee) = %v, want invited", prev)
	}
	if prev := r.Remove("c@example.com"); prev != StateMember {
		t.Errorf("Remove(member) = %v, want member", prev)
	}
	if prev := r.Remove("nobody@example.com"); prev != StateNone {
		t.Errorf("Remove(unknown) = %v, want none", prev)
	}
	if r.HasUser("user-c") {
		t.Error("removed member still matches HasUser")
	}

	// A removed address can be invited again.
	if err := r.Invite("c@example.com", t0); err != nil {
		t.Errorf("re-invite: %v", err)
	}
}

func TestNewRosterKeepsOneStatePerEmail(t *testing.T) {
	r := NewRoster(
		[]Member{
			{UserID: "user-a", Email: "a@example.com", Name: "Alice"},
			{UserID: "dup", Email: "A@example.com", Name: "Dup"},
			{Email: "legacy@example.com", Name: "Legacy"},
		},
		[]Invite{
			{Email: "a@example.com"},
			{Email: "b@example.com"},
			{Email: ""},
		},
	)

	if got := emails(r.Members()); !reflect.DeepEqual(got, []string{"a@example.com", "legacy@example.com"}) {
		t.Errorf("members = %v", got)
	}
	if m, _ := r.Lookup("a@example.com"); m.UserID != "user-a" {
		t.Errorf("first member entry should win, got %+v", m)
	}
	if inv := r.Invites(); len(inv) != 1 || inv[0].Email != "b@example.com" {
		t.Errorf("invites = %v", inv)
	}
}

func TestHasUserIgnoresUnresolvedEntries(t *testing.T) {
	r := NewRoster([]Member{{Email: "legacy@example.com"}}, nil)
	if r.HasUser("") {
		t.Error("empty user id must never match")
	}
	if ids := r.UserIDs(); len(ids) != 0 {
		t.Errorf("UserIDs = %v, want none", ids)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateNone: "none", StateInvited: "invited", StateMember: "member"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
