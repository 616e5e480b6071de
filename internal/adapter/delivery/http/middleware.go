package http

import (
	"net"
	"net/http"

	"github.com/go-chi/render"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
	"github.com/vadimbarashkov/link-gateway/internal/ratelimit"
)

// safeHeaders sets the cache and indexing headers on every response.
func safeHeaders(s botSentinel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			verdict := s.Classify(r.UserAgent(), r.URL.Path)
			copyHeaders(w, s.SafeHeaders(verdict.IsBot))

			next.ServeHTTP(w, r)
		})
	}
}

// blockMajorCrawlers answers 204 with an empty body to crawlers the sentinel
// blocks on action endpoints.
func blockMajorCrawlers(s botSentinel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Classify(r.UserAgent(), r.URL.Path).ShouldBlock {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimit(limiter rateLimiter, routeClass string, limit ratelimit.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Admit(r.Context(), clientIP(r), routeClass, limit.MaxRequests, limit.Window) {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, rateLimitedResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func copyHeaders(w http.ResponseWriter, h http.Header) {
	for k, vs := range h {
		w.Header()[k] = append([]string(nil), vs...)
	}
}

// clientIP returns the host part of RemoteAddr, which RealIP has already
// replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requesterMeta(r *http.Request) entity.RequesterMeta {
	return entity.RequesterMeta{
		UserAgent: r.UserAgent(),
		ClientIP:  clientIP(r),
		Path:      r.URL.Path,
	}
}
