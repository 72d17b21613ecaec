package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Marga-Ghale/group-calendar-backend/internal/calendar"
	"github.com/Marga-Ghale/group-calendar-backend/internal/repository"
	"github.com/Marga-Ghale/group-calendar-backend/internal/socket"
)

// EventInput is the body of a create request.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	GroupID     string
}

// EventPatch is a partial update: nil means "not provided". A provided empty
// description or a provided false AllDay is applied.
type EventPatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	AllDay      *bool
}

// EventDetail is an event joined with its group and creator. Either may be
// nil if the referenced record no longer exists.
type EventDetail struct {
	Event   *repository.Event
	Group   *repository.Group
	Creator *repository.User
}

// ============================================
// Event Service
// ============================================

type EventService interface {
	// ListForUser returns the events of every group in the caller's group
	// list, ordered by start.
	ListForUser(ctx context.Context, callerID string) ([]*EventDetail, error)
	ListForGroup(ctx context.Context, groupID, callerID string) ([]*EventDetail, error)
	Create(ctx context.Context, callerID string, in EventInput) (*EventDetail, error)
	Update(ctx context.Context, eventID, callerID string, patch EventPatch) (*EventDetail, error)
	Delete(ctx context.Context, eventID, callerID string) error
	// ExportGroupICS renders a group's events as an iCalendar feed.
	ExportGroupICS(ctx context.Context, groupID, callerID string) ([]byte, error)
}

type eventService struct {
	eventRepo   repository.EventRepository
	groupRepo   repository.GroupRepository
	userRepo    repository.UserRepository
	permissions PermissionService
	broadcaster *socket.Broadcaster
}

func NewEventService(
	eventRepo repository.EventRepository,
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	permissions PermissionService,
	broadcaster *socket.Broadcaster,
) EventService {
	return &eventService{
		eventRepo:   eventRepo,
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		permissions: permissions,
		broadcaster: broadcaster,
	}
}

func (s *eventService) ListForUser(ctx context.Context, callerID string) ([]*EventDetail, error) {
	user, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	events, err := s.eventRepo.FindByGroupIDs(ctx, user.GroupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return s.join(ctx, events, nil)
}

func (s *eventService) ListForGroup(ctx context.Context, groupID, callerID string) ([]*EventDetail, error) {
	group, err := findGroup(ctx, s.groupRepo, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(group, callerID, ActionViewEvents); err != nil {
		return nil, err
	}

	events, err := s.eventRepo.FindByGroupIDs(ctx, []string{group.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return s.join(ctx, events, group)
}

func (s *eventService) Create(ctx context.Context, callerID string, in EventInput) (*EventDetail, error) {
	title := strings.TrimSpace(in.Title)
	start, end := in.Start, in.End
	if in.AllDay {
		start, end = allDayDate(start), allDayDate(end)
	}
	switch {
	case title == "":
		return nil, validationError("Title is required")
	case in.GroupID == "":
		return nil, validationError("Group is required")
	case in.Start.IsZero() || in.End.IsZero():
		return nil, validationError("Start and end are required")
	case end.Before(start):
		return nil, validationError("End must not be before start")
	}

	group, err := findGroup(ctx, s.groupRepo, in.GroupID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(group, callerID, ActionCreateEvent); err != nil {
		return nil, err
	}

	event := &repository.Event{
		Title:       title,
		Description: in.Description,
		Start:       start,
		End:         end,
		AllDay:      in.AllDay,
		GroupID:     group.ID,
		CreatedBy:   callerID,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastEventCreated(group.ID, eventPayload(event), callerID)
	}

	return s.joinOne(ctx, event, group)
}

func (s *eventService) Update(ctx context.Context, eventID, callerID string, patch EventPatch) (*EventDetail, error) {
	event, group, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Authorize(group, callerID, ActionUpdateEvent); err != nil {
		return nil, err
	}

	// Patched times keep the zone they were sent in; stored ones are read
	// as UTC.
	event.Start, event.End = event.Start.UTC(), event.End.UTC()
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, validationError("Title is required")
		}
		event.Title = title
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.Start != nil {
		event.Start = *patch.Start
	}
	if patch.End != nil {
		event.End = *patch.End
	}
	if patch.AllDay != nil {
		event.AllDay = *patch.AllDay
	}
	if event.Start.IsZero() || event.End.IsZero() {
		return nil, validationError("Start and end are required")
	}
	if event.AllDay {
		event.Start, event.End = allDayDate(event.Start), allDayDate(event.End)
	}
	if event.End.Before(event.Start) {
		return nil, validationError("End must not be before start")
	}
	event.UpdatedAt = time.Now()

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastEventUpdated(group.ID, eventPayload(event), callerID)
	}

	return s.joinOne(ctx, event, group)
}

func (s *eventService) Delete(ctx context.Context, eventID, callerID string) error {
	event, group, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.permissions.Authorize(group, callerID, ActionDeleteEvent); err != nil {
		return err
	}

	if err := s.eventRepo.Delete(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastEventDeleted(group.ID, event.ID, callerID)
	}
	return nil
}

func (s *eventService) ExportGroupICS(ctx context.Context, groupID, callerID string) ([]byte, error) {
	details, err := s.ListForGroup(ctx, groupID, callerID)
	if err != nil {
		return nil, err
	}

	var name string
	items := make([]calendar.Item, 0, len(details))
	for _, d := range details {
		name = d.Group.Name
		// Stored all-day bounds are UTC midnights; drivers may hand them back
		// in the server's zone.
		item := calendar.Item{
			UID:         d.Event.ID + "@group-calendar",
			Summary:     d.Event.Title,
			Description: d.Event.Description,
			Start:       d.Event.Start.UTC(),
			End:         d.Event.End.UTC(),
			AllDay:      d.Event.AllDay,
			Created:     d.Event.CreatedAt,
			Modified:    d.Event.UpdatedAt,
		}
		if d.Creator != nil {
			item.Organizer = d.Creator.Email
		}
		items = append(items, item)
	}
	if name == "" {
		if group, err := findGroup(ctx, s.groupRepo, groupID); err == nil {
			name = group.Name
		}
	}

	var buf bytes.Buffer
	if err := calendar.Encode(&buf, name, items, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// allDayDate is midnight UTC of t's calendar date in t's own location, so an
// all-day event keeps the date the client picked whatever zone it sent.
func allDayDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// loadEvent returns the event and the group it belongs to.
func (s *eventService) loadEvent(ctx context.Context, eventID string) (*repository.Event, *repository.Group, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load event: %w", err)
	}
	if event == nil {
		return nil, nil, ErrEventNotFound
	}
	group, err := findGroup(ctx, s.groupRepo, event.GroupID)
	if err != nil {
		return nil, nil, err
	}
	return event, group, nil
}

func (s *eventService) joinOne(ctx context.Context, event *repository.Event, group *repository.Group) (*EventDetail, error) {
	details, err := s.join(ctx, []*repository.Event{event}, group)
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

// join attaches groups and creators to events. known, when set, is used for
// events of that group instead of reloading it.
func (s *eventService) join(ctx context.Context, events []*repository.Event, known *repository.Group) ([]*EventDetail, error) {
	groups := map[string]*repository.Group{}
	if known != nil {
		groups[known.ID] = known
	}

	var groupIDs, creatorIDs []string
	seenGroup, seenCreator := map[string]bool{}, map[string]bool{}
	for _, e := range events {
		if _, ok := groups[e.GroupID]; !ok && !seenGroup[e.GroupID] {
			seenGroup[e.GroupID] = true
			groupIDs = append(groupIDs, e.GroupID)
		}
		if !seenCreator[e.CreatedBy] {
			seenCreator[e.CreatedBy] = true
			creatorIDs = append(creatorIDs, e.CreatedBy)
		}
	}

	if len(groupIDs) > 0 {
		found, err := s.groupRepo.FindByIDs(ctx, groupIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load event groups: %w", err)
		}
		for _, g := range found {
			groups[g.ID] = g
		}
	}
	creators := map[string]*repository.User{}
	if len(creatorIDs) > 0 {
		found, err := s.userRepo.FindByIDs(ctx, creatorIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load event creators: %w", err)
		}
		for _, u := range found {
			creators[u.ID] = u
		}
	}

	details := make([]*EventDetail, 0, len(events))
	for _, e := range events {
		details = append(details, &EventDetail{
			Event:   e,
			Group:   groups[e.GroupID],
			Creator: creators[e.CreatedBy],
		})
	}
	return details, nil
}

func eventPayload(e *repository.Event) map[string]interface{} {
	return map[string]interface{}{
		"id":          e.ID,
		"title":       e.Title,
		"description": e.Description,
		"start":       e.Start,
		"end":         e.End,
		"allDay":      e.AllDay,
		"groupId":     e.GroupID,
		"createdBy":   e.CreatedBy,
	}
}
