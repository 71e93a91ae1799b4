package util

import "time"

// RunDateLayout is the canonical layout of a generation-date key.
const RunDateLayout = "2006-01-02"

// ParseRunDate parses a YYYY-MM-DD generation date into midnight UTC.
func ParseRunDate(s string) (time.Time, bool) {
	t, err := time.Parse(RunDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
