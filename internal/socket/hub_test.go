package socket

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func connect(h *Hub, userID string) *Client {
	c := NewClient(h, userID, nil)
	h.registerClient(c)
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		if !ok {
			t.Fatalf("send channel of %s closed", c.UserID)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad message: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", c.UserID)
	}
	return Message{}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected message for %s: %s", c.UserID, data)
	default:
	}
}

func TestGroupRoomBroadcastExcludesActor(t *testing.T) {
	h := startHub(t)
	b := NewBroadcaster(h)
	leader, member := connect(h, "u1"), connect(h, "u2")
	h.AddUserToRoom("u1", GroupRoom("g1"))
	h.AddUserToRoom("u2", GroupRoom("g1"))

	b.BroadcastEventCreated("g1", map[string]interface{}{"id": "e1"}, "u1")

	msg := receive(t, member)
	if msg.Type != MessageEventCreated || msg.Payload["id"] != "e1" {
		t.Errorf("member got %+v", msg)
	}
	assertSilent(t, leader)
}

func TestMemberRemovedEvictsUser(t *testing.T) {
	h := startHub(t)
	b := NewBroadcaster(h)
	connect(h, "u1")
	removed := connect(h, "u2")
	h.AddUserToRoom("u1", GroupRoom("g1"))
	h.AddUserToRoom("u2", GroupRoom("g1"))

	b.BroadcastMemberRemoved("g1", "u2", map[string]interface{}{"userId": "u2"}, "u1")

	if msg := receive(t, removed); msg.Type != MessageMemberRemoved {
		t.Errorf("removed user got %s", msg.Type)
	}
	if n := h.RoomSize(GroupRoom("g1")); n != 1 {
		t.Errorf("room size after eviction = %d, want 1", n)
	}
}

func TestGroupDeletedClosesRoom(t *testing.T) {
	h := startHub(t)
	b := NewBroadcaster(h)
	member := connect(h, "u2")
	connect(h, "u1")
	h.AddUserToRoom("u1", GroupRoom("g1"))
	h.AddUserToRoom("u2", GroupRoom("g1"))

	b.BroadcastGroupDeleted("g1", "u1")

	if msg := receive(t, member); msg.Type != MessageGroupDeleted || msg.Payload["id"] != "g1" {
		t.Errorf("member got %+v", msg)
	}
	if n := h.RoomSize(GroupRoom("g1")); n != 0 {
		t.Errorf("room size after delete = %d, want 0", n)
	}
}

func TestMemberAddedSubscribesNewMember(t *testing.T) {
	h := startHub(t)
	b := NewBroadcaster(h)
	joiner := connect(h, "u2")

	b.BroadcastMemberAdded("g1", "u2", map[string]interface{}{"userId": "u2"}, "u1")

	if msg := receive(t, joiner); msg.Type != MessageMemberAdded {
		t.Errorf("joiner got %s", msg.Type)
	}
	b.BroadcastEventDeleted("g1", "e1", "u1")
	if msg := receive(t, joiner); msg.Type != MessageEventDeleted {
		t.Errorf("joiner got %s", msg.Type)
	}
}

func TestSendToUserReachesPersonalConnections(t *testing.T) {
	h := startHub(t)
	b := NewBroadcaster(h)
	first, second := connect(h, "u1"), connect(h, "u1")
	other := connect(h, "u2")

	b.BroadcastGroupCreated("u1", map[string]interface{}{"id": "g9"})

	for _, c := range []*Client{first, second} {
		if msg := receive(t, c); msg.Type != MessageGroupCreated {
			t.Errorf("got %s", msg.Type)
		}
	}
	assertSilent(t, other)
	if n := h.RoomSize(GroupRoom("g9")); n != 2 {
		t.Errorf("creator connections in room = %d, want 2", n)
	}
}

func TestJoinRequiresAuthorization(t *testing.T) {
	h := NewHub()
	c := connect(h, "u1")
	allow := func(_ context.Context, userID, room string) bool {
		id, ok := ParseGroupRoom(room)
		return ok && id == "mine" && userID == "u1"
	}

	c.handleMessage([]byte(`{"action":"join","room":"group:other"}`), allow)
	if msg := receive(t, c); msg.Type != MessageError {
		t.Errorf("unauthorized join replied %s", msg.Type)
	}
	if h.RoomSize(GroupRoom("other")) != 0 {
		t.Error("client joined a room it may not see")
	}

	c.handleMessage([]byte(`{"action":"join","room":"group:mine"}`), allow)
	if msg := receive(t, c); msg.Type != MessageAck {
		t.Errorf("authorized join replied %s", msg.Type)
	}
	if h.RoomSize(GroupRoom("mine")) != 1 {
		t.Error("client not in room after join")
	}
}

func TestUnregisterLeavesRoomsAndClosesSend(t *testing.T) {
	h := NewHub()
	c := connect(h, "u1")
	h.JoinRoom(c, GroupRoom("g1"))

	h.unregisterClient(c)

	if h.ConnectedClients() != 0 || h.IsUserOnline("u1") {
		t.Error("client still registered")
	}
	if h.RoomSize(GroupRoom("g1")) != 0 || h.RoomSize(UserRoom("u1")) != 0 {
		t.Error("client still in rooms")
	}
	if _, ok := <-c.Send; ok {
		t.Error("send channel not closed")
	}
	if c.trySend([]byte("x")) {
		t.Error("send after close succeeded")
	}
}

// returnsWithin fails the test if fn has not returned after d.
func returnsWithin(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s blocked", what)
	}
}

func TestSendsReturnAfterStop(t *testing.T) {
	h := NewHub()
	go h.Run()
	h.Stop()
	b := NewBroadcaster(h)

	// More than the hub buffers hold.
	returnsWithin(t, time.Second, "sends after Stop", func() {
		for i := 0; i < 1000; i++ {
			h.SendToUser("u1", MessageGroupCreated, nil)
			h.SendToRoom(GroupRoom("g1"), MessageEventCreated, nil, "")
			b.BroadcastMemberRemoved("g1", "u2", nil, "u1")
			b.BroadcastGroupDeleted("g1", "u1")
		}
	})
	returnsWithin(t, time.Second, "register after Stop", func() {
		if h.add(NewClient(h, "u1", nil)) {
			t.Error("hub accepted a client after Stop")
		}
	})
	returnsWithin(t, time.Second, "unregister after Stop", func() {
		for i := 0; i < 1000; i++ {
			h.remove(NewClient(h, "u1", nil))
		}
	})
}

func TestSendsDoNotBlockOnBusyHub(t *testing.T) {
	// Run is never started, so nothing drains the queues.
	h := NewHub()
	t.Cleanup(h.Stop)

	returnsWithin(t, time.Second, "sends to a busy hub", func() {
		for i := 0; i < 1000; i++ {
			h.SendToUser("u1", MessageGroupCreated, nil)
			h.SendToRoom(GroupRoom("g1"), MessageEventCreated, nil, "")
		}
	})
}

func TestParseGroupRoom(t *testing.T) {
	if id, ok := ParseGroupRoom("group:abc"); !ok || id != "abc" {
		t.Errorf("ParseGroupRoom(group:abc) = %q, %v", id, ok)
	}
	for _, room := range []string{"group:", "user:abc", "abc"} {
		if _, ok := ParseGroupRoom(room); ok {
			t.Errorf("ParseGroupRoom(%q) accepted", room)
		}
	}
}
