package http

import (
	"time"

	xutil "GridCast/pkg/util"
)

// ParseRunDate parses a YYYY-MM-DD date into midnight UTC.
func ParseRunDate(s string) (time.Time, bool) { return xutil.ParseRunDate(s) }
