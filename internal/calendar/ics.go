// Package calendar renders group events as an iCalendar (RFC 5545) feed.
package calendar

import (
	"bufio"
	"io"
	"strings"
	"time"
)

const (
	prodID        = "-//group-calendar//EN"
	dateTimeUTC   = "20060102T150405Z"
	dateOnly      = "20060102"
	maxLineOctets = 75
)

// Item is one VEVENT.
type Item struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	// AllDay items export the dates of Start and End as seen in their own
	// locations.
	AllDay    bool
	Organizer string // email, optional
	Created   time.Time
	Modified  time.Time
}

// Encode writes a VCALENDAR named name containing items. stamp is used for
// every DTSTAMP.
func Encode(w io.Writer, name string, items []Item, stamp time.Time) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw}

	e.line("BEGIN:VCALENDAR")
	e.line("VERSION:2.0")
	e.line("PRODID:" + prodID)
	e.line("CALSCALE:GREGORIAN")
	e.line("METHOD:PUBLISH")
	if name != "" {
		e.line("X-WR-CALNAME:" + escapeText(name))
	}
	for _, it := range items {
		e.event(it, stamp)
	}
	e.line("END:VCALENDAR")

	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) event(it Item, stamp time.Time) {
	e.line("BEGIN:VEVENT")
	e.line("UID:" + it.UID)
	e.line("DTSTAMP:" + stamp.UTC().Format(dateTimeUTC))
	if it.AllDay {
		start := civilDate(it.Start)
		end := civilDate(it.End)
		// DTEND is exclusive for all-day events.
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
		e.line("DTSTART;VALUE=DATE:" + start.Format(dateOnly))
		e.line("DTEND;VALUE=DATE:" + end.Format(dateOnly))
	} else {
		e.line("DTSTART:" + it.Start.UTC().Format(dateTimeUTC))
		e.line("DTEND:" + it.End.UTC().Format(dateTimeUTC))
	}
	e.line("SUMMARY:" + escapeText(it.Summary))
	if it.Description != "" {
		e.line("DESCRIPTION:" + escapeText(it.Description))
	}
	if it.Organizer != "" {
		e.line("ORGANIZER:mailto:" + it.Organizer)
	}
	if !it.Created.IsZero() {
		e.line("CREATED:" + it.Created.UTC().Format(dateTimeUTC))
	}
	if !it.Modified.IsZero() {
		e.line("LAST-MODIFIED:" + it.Modified.UTC().Format(dateTimeUTC))
	}
	e.line("END:VEVENT")
}

// line writes a content line folded at 75 octets, without splitting a UTF-8
// sequence.
func (e *encoder) line(s string) {
	if e.err != nil {
		return
	}
	var b strings.Builder
	limit := maxLineOctets
	for len(s) > limit {
		cut := limit
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		b.WriteString(s[:cut])
		b.WriteString("\r\n ")
		s = s[cut:]
		// continuation lines spend one octet on the leading space
		limit = maxLineOctets - 1
	}
	b.WriteString(s)
	b.WriteString("\r\n")
	_, e.err = e.w.WriteString(b.String())
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// civilDate is the calendar date of t in its own location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\r", `\n`,
	"\n", `\n`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
