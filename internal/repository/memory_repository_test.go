package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Marga-Ghale/group-calendar-backend/internal/membership"
)

func TestInMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepositories().UserRepo

	alice := &User{Name: "Alice", Email: "alice@example.com", Password: "hash"}
	if err := repo.Create(ctx, alice); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if alice.ID == "" || alice.CreatedAt.IsZero() {
		t.Fatalf("Create did not assign id/timestamps: %+v", alice)
	}
	if err := repo.Create(ctx, &User{Name: "Again", Email: "ALICE@example.com"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("duplicate Create = %v, want ErrDuplicateEmail", err)
	}

	found, err := repo.FindByEmail(ctx, "Alice@Example.com")
	if err != nil || found == nil || found.ID != alice.ID {
		t.Fatalf("FindByEmail = %+v, %v", found, err)
	}
	missing, err := repo.FindByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("FindByID(missing) = %+v, %v; want nil, nil", missing, err)
	}

	// Returned records are copies.
	found.Name = "Mallory"
	again, _ := repo.FindByID(ctx, alice.ID)
	if again.Name != "Alice" {
		t.Errorf("stored user mutated through a returned copy: %q", again.Name)
	}

	_ = repo.AddGroup(ctx, alice.ID, "g1")
	_ = repo.AddGroup(ctx, alice.ID, "g1")
	_ = repo.AddGroup(ctx, alice.ID, "g2")
	again, _ = repo.FindByID(ctx, alice.ID)
	if !reflect.DeepEqual(again.GroupIDs, []string{"g1", "g2"}) {
		t.Errorf("GroupIDs = %v, want [g1 g2]", again.GroupIDs)
	}
	_ = repo.RemoveGroup(ctx, alice.ID, "g1")
	again, _ = repo.FindByID(ctx, alice.ID)
	if !reflect.DeepEqual(again.GroupIDs, []string{"g2"}) {
		t.Errorf("GroupIDs after remove = %v, want [g2]", again.GroupIDs)
	}
}

func TestInMemoryRefreshTokens(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepositories().UserRepo
	now := time.Now()

	_ = repo.SaveRefreshToken(ctx, &RefreshToken{Token: "old", UserID: "u", ExpiresAt: now.Add(-time.Hour)})
	_ = repo.SaveRefreshToken(ctx, &RefreshToken{Token: "fresh", UserID: "u", ExpiresAt: now.Add(time.Hour)})

	n, err := repo.DeleteExpiredRefreshTokens(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredRefreshTokens = %d, %v; want 1", n, err)
	}
	if rt, _ := repo.FindRefreshToken(ctx, "old"); rt != nil {
		t.Error("expired token still present")
	}
	if rt, _ := repo.FindRefreshToken(ctx, "fresh"); rt == nil {
		t.Error("fresh token was purged")
	}
}

func TestInMemoryGroupRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepositories().GroupRepo

	first := &Group{Name: "First", LeaderID: "u1", Members: []membership.Member{{UserID: "u1", Email: "a@example.com"}}}
	second := &Group{Name: "Second", LeaderID: "u2"}
	_ = repo.Create(ctx, first)
	_ = repo.Create(ctx, second)

	if second.Members == nil || second.Invites == nil {
		t.Error("Create should normalize nil lists")
	}

	groups, _ := repo.FindByIDs(ctx, []string{second.ID, "missing", first.ID})
	if len(groups) != 2 || groups[0].ID != first.ID || groups[1].ID != second.ID {
		t.Fatalf("FindByIDs order = %v", groups)
	}

	first.Name = "Renamed"
	first.LeaderID = "someone-else"
	first.Invites = []membership.Invite{{Email: "b@example.com"}}
	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := repo.FindByID(ctx, first.ID)
	if got.Name != "Renamed" || len(got.Invites) != 1 {
		t.Errorf("Update not applied: %+v", got)
	}
	if got.LeaderID != "u1" {
		t.Errorf("LeaderID changed by Update: %q", got.LeaderID)
	}

	_ = repo.Delete(ctx, first.ID)
	if g, _ := repo.FindByID(ctx, first.ID); g != nil {
		t.Error("group still present after Delete")
	}
}

func TestInMemoryEventRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepositories().EventRepo
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	late := &Event{Title: "late", GroupID: "g1", Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour)}
	early := &Event{Title: "early", GroupID: "g2", Start: base, End: base.Add(time.Hour)}
	other := &Event{Title: "other", GroupID: "g3", Start: base, End: base.Add(time.Hour)}
	for _, e := range []*Event{late, early, other} {
		_ = repo.Create(ctx, e)
	}

	events, _ := repo.FindByGroupIDs(ctx, []string{"g1", "g2"})
	if len(events) != 2 || events[0].Title != "early" || events[1].Title != "late" {
		t.Fatalf("FindByGroupIDs = %v", events)
	}
	if events, _ := repo.FindByGroupIDs(ctx, nil); len(events) != 0 {
		t.Errorf("FindByGroupIDs(nil) = %v, want empty", events)
	}

	n, _ := repo.DeleteByGroup(ctx, "g1")
	if n != 1 {
		t.Errorf("DeleteByGroup = %d, want 1", n)
	}
	if e, _ := repo.FindByID(ctx, late.ID); e != nil {
		t.Error("event survived DeleteByGroup")
	}
}
