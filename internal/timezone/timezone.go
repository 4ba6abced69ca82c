package timezone

import (
	"fmt"
	"time"

	"marketstore/models"
)

// Convert localizes every timestamp of the table's index to the given
// location. The underlying instants are unchanged, only the offset
// moves.
func Convert(t *models.Table, loc *time.Location) {
	t.MapIndex(func(ts time.Time) time.Time {
		return ts.In(loc)
	})
}

// ToUTC normalizes the table's index to the reference timezone.
func ToUTC(t *models.Table) {
	Convert(t, time.UTC)
}

// layouts are tried in order when parsing provider timestamps.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse reads a timestamp in one of the accepted layouts. Layouts
// without an offset are taken as UTC.
func Parse(s string) (time.Time, error) {
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
