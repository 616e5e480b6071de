// Package ratelimit provides fixed-window admission control keyed by
// identity and route class.
//
// Both limiters fail open: when the counter store cannot be reached the
// request is admitted and the failure is logged.
package ratelimit

import (
	"fmt"
	"time"
)

// Route classes with independent quotas.
const (
	RouteRedirect = "redirect"
	RouteContinue = "continue"
	RouteAPI      = "api"
)

// Limit is a quota of MaxRequests admissions per Window.
type Limit struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// Enabled reports whether the limit restricts anything.
func (l Limit) Enabled() bool {
	return l.MaxRequests > 0 && l.Window > 0
}

func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

func counterKey(prefix, routeClass, identity string, start time.Time) string {
	return fmt.Sprintf("%s%s:%s:%d", prefix, routeClass, identity, start.Unix())
}
