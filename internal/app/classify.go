package app

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// class groups collector status codes by how the protocol reacts to them.
type class int

const (
	classSuccess class = iota
	classUnauthorized
	classGone
	classConflict
	classRateLimited
	classServerError
	classResumeIncomplete
	classUnexpected
)

// String returns a human-readable representation of the class.
func (c class) String() string {
	switch c {
	case classSuccess:
		return "success"
	case classUnauthorized:
		return "unauthorized"
	case classGone:
		return "gone"
	case classConflict:
		return "conflict"
	case classRateLimited:
		return "rate-limited"
	case classServerError:
		return "server-error"
	case classResumeIncomplete:
		return "resume-incomplete"
	default:
		return "unexpected"
	}
}

func classify(status int) class {
	switch {
	case status/100 == 2:
		return classSuccess
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return classUnauthorized
	case status == http.StatusNotFound || status == http.StatusGone:
		return classGone
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		return classConflict
	case status == http.StatusTooManyRequests:
		return classRateLimited
	case status/100 == 5:
		return classServerError
	case status == http.StatusPermanentRedirect:
		return classResumeIncomplete
	default:
		return classUnexpected
	}
}

// parseRetryAfter reads a Retry-After header given either as delay seconds
// or as an HTTP date. Returns zero if absent or unparsable.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
