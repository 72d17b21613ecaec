package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

var stamp = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func encode(t *testing.T, name string, items ...Item) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, name, items, stamp); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.String()
}

func TestEncodeTimedEvent(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	out := encode(t, "Team", Item{
		UID:         "e1@group-calendar",
		Summary:     "Standup",
		Description: "Daily; short, sharp",
		Start:       time.Date(2024, 6, 3, 11, 0, 0, 0, loc),
		End:         time.Date(2024, 6, 3, 11, 15, 0, 0, loc),
		Organizer:   "a@example.com",
	})

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"X-WR-CALNAME:Team\r\n",
		"UID:e1@group-calendar\r\n",
		"DTSTAMP:20240601T120000Z\r\n",
		"DTSTART:20240603T090000Z\r\n",
		"DTEND:20240603T091500Z\r\n",
		"SUMMARY:Standup\r\n",
		`DESCRIPTION:Daily\; short\, sharp` + "\r\n",
		"ORGANIZER:mailto:a@example.com\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "CREATED:") {
		t.Error("zero Created should be omitted")
	}
}

func TestEncodeAllDayEvent(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	out := encode(t, "", Item{UID: "e2", Summary: "Offsite", Start: day, End: day, AllDay: true})

	if !strings.Contains(out, "DTSTART;VALUE=DATE:20240603\r\n") {
		t.Errorf("missing all-day DTSTART:\n%s", out)
	}
	if !strings.Contains(out, "DTEND;VALUE=DATE:20240604\r\n") {
		t.Errorf("all-day DTEND should be the following day:\n%s", out)
	}
	if strings.Contains(out, "X-WR-CALNAME") {
		t.Error("empty calendar name should be omitted")
	}
}

func TestEncodeFoldsLongLines(t *testing.T) {
	out := encode(t, "", Item{UID: "e3", Summary: strings.Repeat("é", 100)})

	for _, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		if len(line) > 75 {
			t.Errorf("line longer than 75 octets (%d): %q", len(line), line)
		}
	}
	unfolded := strings.ReplaceAll(out, "\r\n ", "")
	if !strings.Contains(unfolded, "SUMMARY:"+strings.Repeat("é", 100)+"\r\n") {
		t.Error("unfolded summary does not round-trip")
	}
}

func TestEscapeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a\\b;c,d\ne", `a\\b\;c\,d\ne`},
		{"line\r\nbreak", `line\nbreak`},
		{"a\rDTSTART:19700101T000000Z", `a\nDTSTART:19700101T000000Z`},
	}
	for _, tt := range tests {
		if got := escapeText(tt.in); got != tt.want {
			t.Errorf("escapeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncodeBareCarriageReturnStaysInProperty(t *testing.T) {
	out := encode(t, "Team\rX-INJECTED:1", Item{
		UID:         "e4",
		Summary:     "Lunch\rDTSTART:19700101T000000Z",
		Description: "a\rb",
		Start:       time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC),
	})

	if strings.Contains(strings.ReplaceAll(out, "\r\n", ""), "\r") {
		t.Errorf("bare CR in output:\n%q", out)
	}
	for _, line := range strings.Split(out, "\r\n") {
		if strings.HasPrefix(line, "DTSTART:1970") || strings.HasPrefix(line, "X-INJECTED") {
			t.Errorf("text value escaped its property: %q", line)
		}
	}
}

func TestEncodeAllDayEventUsesLocalDate(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, loc)
	end := time.Date(2024, 6, 4, 0, 0, 0, 0, loc)
	out := encode(t, "", Item{UID: "e5", Summary: "Offsite", Start: start, End: end, AllDay: true})

	if !strings.Contains(out, "DTSTART;VALUE=DATE:20240603\r\n") {
		t.Errorf("all-day DTSTART should keep the local date:\n%s", out)
	}
	if !strings.Contains(out, "DTEND;VALUE=DATE:20240604\r\n") {
		t.Errorf("all-day DTEND should keep the local date:\n%s", out)
	}
}
