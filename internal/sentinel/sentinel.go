// Package sentinel classifies requesters as browsers or crawlers and decides
// which requests are blocked.
//
// Only the major-platform crawler family is ever blocked, and only on action
// endpoints. Presentational responses are served to every caller alike.
package sentinel

import (
	"net/http"
	"strings"

	"github.com/vadimbarashkov/link-gateway/internal/entity"
)

const (
	ReasonBrowser             = "browser"
	ReasonEmptyUserAgent      = "empty user agent"
	ReasonMajorPlatformAction = "major platform crawler on action endpoint"
	ReasonMajorPlatform       = "major platform crawler on presentational endpoint"
	ReasonKnownCrawler        = "known crawler"
	ReasonGenericBot          = "unrecognised automated client"
)

// DefaultActionPrefixes are the path prefixes of action endpoints.
var DefaultActionPrefixes = []string{"/go/", "/api/"}

type Option func(*Sentinel)

func WithPatterns(p Patterns) Option {
	return func(s *Sentinel) {
		s.patterns = p.normalized()
	}
}

func WithActionPrefixes(prefixes ...string) Option {
	return func(s *Sentinel) {
		s.actionPrefixes = append([]string(nil), prefixes...)
	}
}

// Sentinel is immutable after construction and safe for concurrent use.
type Sentinel struct {
	patterns       Patterns
	actionPrefixes []string
}

func New(opts ...Option) *Sentinel {
	s := &Sentinel{
		patterns:       DefaultPatterns().normalized(),
		actionPrefixes: DefaultActionPrefixes,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// IsActionPath reports whether path belongs to an action endpoint.
func (s *Sentinel) IsActionPath(path string) bool {
	for _, prefix := range s.actionPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Classify returns the verdict for a request with userAgent on path.
func (s *Sentinel) Classify(userAgent, path string) entity.BotVerdict {
	ua := strings.ToLower(strings.TrimSpace(userAgent))

	if ua == "" {
		return entity.BotVerdict{IsBot: true, Reason: ReasonEmptyUserAgent}
	}

	if _, ok := matchAny(ua, s.patterns.MajorPlatform); ok {
		if s.IsActionPath(path) {
			return entity.BotVerdict{
				IsBot:                  true,
				IsKnownCrawlerOperator: true,
				ShouldBlock:            true,
				Reason:                 ReasonMajorPlatformAction,
			}
		}
		return entity.BotVerdict{
			IsBot:                  true,
			IsKnownCrawlerOperator: true,
			Reason:                 ReasonMajorPlatform,
		}
	}

	if _, ok := matchAny(ua, s.patterns.KnownCrawlers); ok {
		return entity.BotVerdict{IsBot: true, IsKnownCrawlerOperator: true, Reason: ReasonKnownCrawler}
	}

	if _, ok := matchAny(ua, s.patterns.Generic); ok {
		return entity.BotVerdict{IsBot: true, Reason: ReasonGenericBot}
	}

	return entity.BotVerdict{Reason: ReasonBrowser}
}

// SafeHeaders returns the headers attached to every gateway response.
func (s *Sentinel) SafeHeaders(isBot bool) http.Header {
	return SafeHeaders(isBot)
}

// SafeHeaders returns the headers attached to every gateway response.
func SafeHeaders(isBot bool) http.Header {
	h := http.Header{}
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("X-Robots-Tag", "noindex, nofollow, nosnippet, noarchive")
	if isBot {
		h.Set("Referrer-Policy", "no-referrer")
	}
	return h
}
