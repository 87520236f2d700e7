// Package datetime contains date parsing and normalization helpers shared by
// connectors. Servers in the wild emit timestamps with and without zone info;
// naive values are interpreted as UTC
package datetime

import (
	"strings"
	"time"

	perr "testharvest/internal/platform/errors"
)

// QueryLayout is the wire format used in date-window query parameters
const QueryLayout = "2006-01-02 15:04:05"

// layouts tried in order by Parse; zoneless layouts resolve to UTC
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Epoch returns the minimal-window sentinel, 1970-01-01T00:00:00Z
func Epoch() time.Time {
	return time.Unix(0, 0).UTC()
}

// ToUTC normalizes t to UTC
func ToUTC(t time.Time) time.Time { return t.UTC() }

// Parse converts a datetime string into a UTC time.
// Strings without zone information are taken as UTC
func Parse(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, perr.Validationf("empty datetime string")
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, perr.Validationf("unparsable datetime %q", v)
}

// FormatQuery renders t in the window query parameter format, in UTC
func FormatQuery(t time.Time) string {
	return t.UTC().Format(QueryLayout)
}

// UnixFloat returns t as UNIX seconds with sub-second precision
func UnixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
