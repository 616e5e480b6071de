// Package urlcheck validates destination URLs and extracts their domain.
package urlcheck

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vadimbarashkov/link-gateway/internal/entity"
)

const maxURLLength = 2048

// Validate returns entity.ErrValidation unless raw is an absolute http or https URL with a host.
func Validate(raw string) error {
	_, err := Parse(raw)
	return err
}

// Parse validates raw and returns the parsed URL.
func Parse(raw string) (*url.URL, error) {
	if raw == "" || len(raw) > maxURLLength {
		return nil, fmt.Errorf("%w: url is empty or too long", entity.ErrValidation)
	}

	if strings.TrimSpace(raw) != raw {
		return nil, fmt.Errorf("%w: url has surrounding whitespace", entity.ErrValidation)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed url", entity.ErrValidation)
	}

	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: url must be absolute http or https", entity.ErrValidation)
	}

	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: url has no host", entity.ErrValidation)
	}

	return u, nil
}

// Domain returns the lowercase hostname of raw without a leading "www.".
// It returns an empty string when raw is not a valid destination.
func Domain(raw string) string {
	u, err := Parse(raw)
	if err != nil {
		return ""
	}
	return NormalizeHost(u.Hostname())
}

// NormalizeHost lowercases host, trims a trailing dot and strips a leading "www.".
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return strings.TrimPrefix(host, "www.")
}
