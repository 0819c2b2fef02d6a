package transport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// ParseRetryAfter extracts a duration from the Retry-After HTTP response header.
// Supports seconds ("30") and HTTP-date ("Thu, 01 Dec 1994 16:00:00 GMT") formats.
// Returns 0 if the header is missing, unparseable, or in the past.
func ParseRetryAfter(header http.Header) time.Duration {
	val := header.Get("Retry-After")
	if val == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(val); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
		return 0
	}

	slog.Debug("unparseable Retry-After header", "value", val)
	return 0
}
