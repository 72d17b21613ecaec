package socket

import "log/slog"

// Broadcaster provides high-level methods for broadcasting group and event
// changes. Every group change goes to the group's room; the acting user is
// excluded so their own client does not echo the change back.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// ============================================
// Group Broadcasting
// ============================================

// BroadcastGroupCreated tells the creator's other connections about the new
// group and subscribes them to it.
func (b *Broadcaster) BroadcastGroupCreated(userID string, group map[string]interface{}) {
	if id, ok := group["id"].(string); ok {
		b.hub.AddUserToRoom(userID, GroupRoom(id))
	}
	b.hub.SendToUser(userID, MessageGroupCreated, group)
}

func (b *Broadcaster) BroadcastGroupUpdated(groupID string, group map[string]interface{}, excludeUserID string) {
	b.hub.SendToRoom(GroupRoom(groupID), MessageGroupUpdated, group, excludeUserID)
}

// BroadcastGroupDeleted notifies the group room and then closes it.
func (b *Broadcaster) BroadcastGroupDeleted(groupID, excludeUserID string) {
	b.hub.enqueueRoom(&RoomMessage{
		Room:    GroupRoom(groupID),
		Exclude: excludeUserID,
		Close:   true,
	}, MessageGroupDeleted, map[string]interface{}{"id": groupID})
}

// BroadcastMemberAdded subscribes the new member's connections to the group
// room, then announces them there.
func (b *Broadcaster) BroadcastMemberAdded(groupID, userID string, member map[string]interface{}, excludeUserID string) {
	if userID != "" {
		b.hub.AddUserToRoom(userID, GroupRoom(groupID))
	}
	slog.Debug("broadcast member added", "group_id", groupID, "user_id", userID)
	b.hub.SendToRoom(GroupRoom(groupID), MessageMemberAdded, member, excludeUserID)
}

// BroadcastMemberRemoved announces a removal to the group room. The removed
// user, when known, hears it too and is then unsubscribed.
func (b *Broadcaster) BroadcastMemberRemoved(groupID, userID string, member map[string]interface{}, excludeUserID string) {
	slog.Debug("broadcast member removed", "group_id", groupID, "user_id", userID)
	b.hub.enqueueRoom(&RoomMessage{
		Room:    GroupRoom(groupID),
		Exclude: excludeUserID,
		Evict:   userID,
	}, MessageMemberRemoved, member)
}

// ============================================
// Event Broadcasting
// ============================================

func (b *Broadcaster) BroadcastEventCreated(groupID string, event map[string]interface{}, excludeUserID string) {
	b.hub.SendToRoom(GroupRoom(groupID), MessageEventCreated, event, excludeUserID)
}

func (b *Broadcaster) BroadcastEventUpdated(groupID string, event map[string]interface{}, excludeUserID string) {
	b.hub.SendToRoom(GroupRoom(groupID), MessageEventUpdated, event, excludeUserID)
}

func (b *Broadcaster) BroadcastEventDeleted(groupID, eventID, excludeUserID string) {
	b.hub.SendToRoom(GroupRoom(groupID), MessageEventDeleted, map[string]interface{}{
		"id":      eventID,
		"groupId": groupID,
	}, excludeUserID)
}
