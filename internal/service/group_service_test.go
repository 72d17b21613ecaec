package service

import (
	"testing"
	"time"
)

func TestCreateGroupMakesCreatorLeaderAndMember(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice@example.com")

	detail, err := f.svc.Group.Create(f.ctx, alice.ID, " Team ", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	g := detail.Group
	if g.Name != "Team" || g.Color != DefaultGroupColor || g.LeaderID != alice.ID {
		t.Errorf("group = %+v", g)
	}
	if len(g.Members) != 1 || g.Members[0].UserID != alice.ID || len(g.Invites) != 0 {
		t.Errorf("roster = %+v / %+v", g.Members, g.Invites)
	}
	if detail.Users[alice.ID] == nil {
		t.Error("leader not joined into detail")
	}
	if !hasGroup(f.user(t, alice.ID), g.ID) {
		t.Error("creator's group list missing the group")
	}
}

func TestCreateGroupValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice@example.com")

	_, err := f.svc.Group.Create(f.ctx, alice.ID, "  ", nil)
	assertKind(t, err, ErrValidation)

	_, err = f.svc.Group.Create(f.ctx, alice.ID, "Team\r\nBcc: attacker@evil.test", nil)
	assertKind(t, err, ErrValidation)

	bad := "blue"
	_, err = f.svc.Group.Create(f.ctx, alice.ID, "Team", &bad)
	assertKind(t, err, ErrValidation)

	custom := "ff0000"
	detail, err := f.svc.Group.Create(f.ctx, alice.ID, "Team", &custom)
	if err != nil || detail.Group.Color != "#FF0000" {
		t.Errorf("custom color: %v %+v", err, detail)
	}

	_, err = f.svc.Group.Create(f.ctx, "ghost", "Team", nil)
	assertKind(t, err, ErrNotFound)
}

func TestListGroupsForUser(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	first := f.createGroup(t, alice, "First")
	second := f.createGroup(t, alice, "Second")
	f.createGroup(t, bob, "Bob's")

	details, err := f.svc.Group.ListForUser(f.ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(details) != 2 || details[0].Group.ID != first.ID || details[1].Group.ID != second.ID {
		t.Errorf("listed %d groups", len(details))
	}
}

func TestGetGroupRequiresMembership(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice@example.com")
	carol := f.register(t, "Carol", "carol@example.com")
	g := f.createGroup(t, alice, "Team")

	if _, err := f.svc.Group.Get(f.ctx, g.ID, alice.ID); err != nil {
		t.Errorf("leader Get: %v", err)
	}
	_, err := f.svc.Group.Get(f.ctx, g.ID, carol.ID)
	assertKind(t, err, ErrUnauthorized)
	_, err = f.svc.Group.Get(f.ctx, "missing", alice.ID)
	assertKind(t, err, ErrNotFound)
}

func TestUpdateGroupIsPartialAndLeaderOnly(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	g := f.createGroup(t, alice, "Team")
	if _, err := f.svc.Invitation.Invite(f.ctx, g.ID, alice.ID, bob.Email); err != nil {
		t.Fatal(err)
	}

	color := "#00AA00"
	detail, err := f.svc.Group.Update(f.ctx, g.ID, alice.ID, nil, &color)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if detail.Group.Name != "Team" || detail.Group.Color != "#00AA00" {
		t.Errorf("group after color-only update = %+v", detail.Group)
	}

	name := "Renamed"
	_, err = f.svc.Group.Update(f.ctx, g.ID, bob.ID, &name, nil)
	assertKind(t, err, ErrUnauthorized)
	if f.group(t, g.ID).Name != "Team" {
		t.Error("non-leader update changed the group")
	}

	empty := ""
	_, err = f.svc.Group.Update(f.ctx, g.ID, alice.ID, &empty, nil)
	assertKind(t, err, ErrValidation)

	broken := "Team\nBcc: attacker@evil.test"
	_, err = f.svc.Group.Update(f.ctx, g.ID, alice.ID, &broken, nil)
	assertKind(t, err, ErrValidation)
	if f.group(t, g.ID).Name != "Team" {
		t.Error("rejected rename changed the group")
	}
}

func TestDeleteGroupCleansUpEveryMember(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice@example.com")
	bob := f.register(t, "Bob", "bob@example.com")
	carol := f.register(t, "Carol", "carol@example.com")
	g := f.createGroup(t, alice, "Team")
	keep := f.createGroup(t, bob, "Other")
	for _, u := range []string{bob.Email, carol.Email} {
		if _, err := f.svc.Invitation.Invite(f.ctx, g.ID, alice.ID, u); err != nil {
			t.Fatal(err)
		}
	}
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	if _, err := f.svc.Event.Create(f.ctx, bob.ID, EventInput{Title: "Standup", Start: start, End: start.Add(time.Hour), GroupID: g.ID}); err != nil {
		t.Fatal(err)
	}

	assertKind(t, f.svc.Group.Delete(f.ctx, g.ID, bob.ID), ErrUnauthorized)

	if err := f.svc.Group.Delete(f.ctx, g.ID, alice.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, u := range []string{alice.ID, bob.ID, carol.ID} {
		if hasGroup(f.user(t, u), g.ID) {
			t.Errorf("user %s still references deleted group", u)
		}
	}
	if !hasGroup(f.user(t, bob.ID), keep.ID) {
		t.Error("unrelated group reference removed")
	}
	_, err := f.svc.Group.Get(f.ctx, g.ID, alice.ID)
	assertKind(t, err, ErrNotFound)

	events, err := f.repos.EventRepo.FindByGroupIDs(f.ctx, []string{g.ID})
	if err != nil || len(events) != 0 {
		t.Errorf("events of deleted group remain: %d, %v", len(events), err)
	}
}
