package models

import (
	"math"
	"time"
)

// Result is the outcome of one fixed-window check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns whole seconds until the window resets, at least one.
func (r *Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// KeyForIP scopes a client address to the ingress window.
func KeyForIP(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "ratelimit:ingress:" + ip
}
