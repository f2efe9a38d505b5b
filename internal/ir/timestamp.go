package ir

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// fractionRe splits an ISO-8601 timestamp around its fractional seconds.
var fractionRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2})(\.\d+)?(.*)$`)

// ParseTimestamp parses an ISO-8601 timestamp as the store emits it.
//
// A trailing "Z" is normalized to "+00:00". Fractional seconds longer than
// six digits are truncated, not rounded, to six digits before parsing, so
// "…03.0000049Z" decodes to 4 microseconds. A timestamp without a zone is
// taken as UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "+00:00"
	}

	m := fractionRe.FindStringSubmatch(s)
	if m == nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
	}
	base, frac, zone := strings.Replace(m[1], " ", "T", 1), m[2], m[3]
	if len(frac) > 7 { // "." plus six digits
		frac = frac[:7]
	}

	layout := "2006-01-02T15:04:05.999999"
	if zone != "" {
		layout += "Z07:00"
	}
	t, err := time.Parse(layout, base+frac+zone)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return Timestamp{Time: t}, nil
}
