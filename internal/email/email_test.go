package email

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var invitation = GroupInvitationData{
	GroupName:  "Family",
	GroupColor: "#4285F4",
	InvitedBy:  "Alice",
	SignupURL:  "http://localhost:3000/register?email=b%40example.com",
}

func TestRenderGroupInvitation(t *testing.T) {
	s := NewService(&Config{})

	body, err := s.Render(templateGroupInvitation, invitation)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"Family", "Alice", "background: #4285F4", "register?email=b%40example.com"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := NewService(&Config{}).Render("nope", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestSendWithoutHostIsNoop(t *testing.T) {
	s := NewService(&Config{})
	s.transport = func(string, string, []string, []byte) error {
		t.Fatal("transport called without SMTP host")
		return nil
	}
	if err := s.Send(&Email{To: []string{"a@example.com"}, Body: "hi"}); err != nil {
		t.Errorf("Send: %v", err)
	}
}

func TestSendBuildsMessage(t *testing.T) {
	s := NewService(&Config{Host: "smtp.example.com", Port: 2525, From: "noreply@example.com", FromName: "Group Calendar"})
	var gotAddr string
	var gotMsg []byte
	s.transport = func(addr, from string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		return nil
	}

	if err := s.SendWithTemplate([]string{"b@example.com"}, "Hello", templateGroupInvitation, invitation); err != nil {
		t.Fatalf("SendWithTemplate: %v", err)
	}
	if gotAddr != "smtp.example.com:2525" {
		t.Errorf("addr = %q", gotAddr)
	}
	msg := string(gotMsg)
	for _, want := range []string{
		"From: Group Calendar <noreply@example.com>\r\n",
		"To: b@example.com\r\n",
		"Subject: Hello\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendKeepsHeadersOnOneLine(t *testing.T) {
	s := NewService(&Config{Host: "smtp.example.com", Port: 2525, From: "noreply@example.com", FromName: "Group\r\nCalendar"})
	var gotMsg []byte
	s.transport = func(_, _ string, _ []string, msg []byte) error {
		gotMsg = msg
		return nil
	}

	data := invitation
	data.GroupName = "Team\r\nBcc: attacker@evil.test"
	if err := s.SendWithTemplate([]string{"b@example.com"}, groupInvitationSubject(data), templateGroupInvitation, data); err != nil {
		t.Fatalf("SendWithTemplate: %v", err)
	}

	head, _, _ := strings.Cut(string(gotMsg), "\r\n\r\n")
	subjects := 0
	for _, line := range strings.Split(head, "\r\n") {
		if strings.HasPrefix(strings.ToLower(line), "bcc:") {
			t.Errorf("injected header line %q", line)
		}
		if strings.HasPrefix(line, "Subject:") {
			subjects++
		}
	}
	if subjects != 1 {
		t.Errorf("got %d Subject lines in:\n%s", subjects, head)
	}
	if !strings.Contains(head, "Subject: Alice invited you to Team Bcc: attacker@evil.test\r\n") {
		t.Errorf("subject not flattened:\n%s", head)
	}
	if !strings.Contains(head, "From: Group Calendar <noreply@example.com>\r\n") {
		t.Errorf("from name not flattened:\n%s", head)
	}
}

func TestSendEncodesNonASCIISubject(t *testing.T) {
	s := NewService(&Config{Host: "smtp.example.com", Port: 2525, From: "noreply@example.com"})
	var gotMsg []byte
	s.transport = func(_, _ string, _ []string, msg []byte) error {
		gotMsg = msg
		return nil
	}

	if err := s.Send(&Email{To: []string{"b@example.com"}, Subject: "Café", Body: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(string(gotMsg), "Subject: =?utf-8?q?Caf=C3=A9?=\r\n") {
		t.Errorf("subject not encoded:\n%s", gotMsg)
	}
}

func TestSendRejectsRecipientWithLineBreak(t *testing.T) {
	s := NewService(&Config{Host: "smtp.example.com", Port: 2525})
	s.transport = func(_, _ string, _ []string, _ []byte) error {
		t.Error("transport called for a bad recipient")
		return nil
	}
	if err := s.Send(&Email{To: []string{"b@example.com\r\nBcc: x@evil.test"}, Subject: "Hi"}); err == nil {
		t.Error("expected an error")
	}
}

func TestQueueRetriesFailedSends(t *testing.T) {
	s := NewService(&Config{Host: "smtp.example.com", Port: 25})
	var mu sync.Mutex
	attempts := 0
	delivered := make(chan []string, 1)
	s.transport = func(_, _ string, to []string, _ []byte) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("temporary failure")
		}
		delivered <- to
		return nil
	}

	q := NewEmailQueue(s, 1)
	q.backoff = func(int) time.Duration { return 0 }
	defer q.Stop()

	q.QueueGroupInvitation("b@example.com", invitation)

	select {
	case to := <-delivered:
		if len(to) != 1 || to[0] != "b@example.com" {
			t.Errorf("delivered to %v", to)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("invitation never delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestGroupInvitationSubject(t *testing.T) {
	if got := groupInvitationSubject(invitation); got != "Alice invited you to Family" {
		t.Errorf("subject = %q", got)
	}
}
