// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Marga-Ghale/group-calendar-backend/internal/repository"
	"github.com/Marga-Ghale/group-calendar-backend/internal/service"
)

// Password shared by every seeded account.
const Password = "password123"

type seedUser struct {
	name  string
	email string
}

var users = []seedUser{
	{"Marga Ghale", "marga@example.com"},
	{"Bipin Dhimal", "bipin@example.com"},
	{"Kritim Kafle", "kritim@example.com"},
}

// SeedData creates demo users, two groups and a week of events. It does
// nothing when the first demo user already exists.
func SeedData(ctx context.Context, services *service.Services, userRepo repository.UserRepository) error {
	existing, err := userRepo.FindByEmail(ctx, users[0].email)
	if err != nil {
		return fmt.Errorf("check seed state: %w", err)
	}
	if existing != nil {
		slog.Info("seed data already present, skipping")
		return nil
	}

	slog.Info("seeding development data")

	created := make([]*repository.User, 0, len(users))
	for _, u := range users {
		user, _, _, err := services.Auth.Register(ctx, u.name, u.email, Password)
		if err != nil {
			return fmt.Errorf("register %s: %w", u.email, err)
		}
		created = append(created, user)
	}
	marga, bipin, kritim := created[0], created[1], created[2]

	// Family: Marga leads, Bipin joins, one address has no account yet.
	family, err := createGroup(ctx, services, marga, "Family", "#EA4335")
	if err != nil {
		return err
	}
	for _, address := range []string{bipin.Email, "grandma@example.com"} {
		if _, err := services.Invitation.Invite(ctx, family.ID, marga.ID, address); err != nil {
			return fmt.Errorf("invite %s: %w", address, err)
		}
	}

	// Book club: Kritim leads, everyone else is a member.
	club, err := createGroup(ctx, services, kritim, "Book Club", "#34A853")
	if err != nil {
		return err
	}
	for _, u := range []*repository.User{marga, bipin} {
		if _, err := services.Invitation.Invite(ctx, club.ID, kritim.ID, u.Email); err != nil {
			return fmt.Errorf("invite %s: %w", u.Email, err)
		}
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	events := []struct {
		by     *repository.User
		group  *repository.Group
		title  string
		start  time.Time
		length time.Duration
		allDay bool
	}{
		{marga, family, "Sunday dinner", day.Add(18 * time.Hour), 2 * time.Hour, false},
		{bipin, family, "Dentist: kids", day.Add(24*time.Hour + 15*time.Hour), time.Hour, false},
		{marga, family, "Trip to Pokhara", day.Add(4 * 24 * time.Hour), 2 * 24 * time.Hour, true},
		{kritim, club, "Monthly meetup", day.Add(3*24*time.Hour + 19*time.Hour), 90 * time.Minute, false},
	}
	for _, e := range events {
		_, err := services.Event.Create(ctx, e.by.ID, service.EventInput{
			Title:   e.title,
			Start:   e.start,
			End:     e.start.Add(e.length),
			AllDay:  e.allDay,
			GroupID: e.group.ID,
		})
		if err != nil {
			return fmt.Errorf("create event %q: %w", e.title, err)
		}
	}

	slog.Info("seed data created", "users", len(created), "groups", 2, "events", len(events))
	return nil
}

func createGroup(ctx context.Context, services *service.Services, leader *repository.User, name, color string) (*repository.Group, error) {
	detail, err := services.Group.Create(ctx, leader.ID, name, &color)
	if err != nil {
		return nil, fmt.Errorf("create group %s: %w", name, err)
	}
	return detail.Group, nil
}
