package service

import (
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultGroupColor is used when a group is created without a color.
const DefaultGroupColor = "#4285F4"

// normalizeColor accepts "#RRGGBB" (the leading '#' may be omitted) and
// returns it upper-cased.
func normalizeColor(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	invalid := validationError("Color must be a hex value like " + DefaultGroupColor)
	if len(s) != 7 {
		return "", invalid
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return "", invalid
	}
	out := strings.ToUpper(c.Hex())
	// Sscanf-based parsing tolerates embedded spaces; the round trip does not.
	if out != strings.ToUpper(s) {
		return "", invalid
	}
	return out, nil
}
