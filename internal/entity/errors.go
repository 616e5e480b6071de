package entity

import "errors"

var (
	// ErrValidation is returned for a bad or non-http(s) URL or a malformed alias.
	ErrValidation = errors.New("validation error")
	// ErrAllocationExhausted is returned when no unique short id could be reserved within the retry budget.
	ErrAllocationExhausted = errors.New("short id allocation exhausted")
	// ErrShortIDExists is returned when inserting a link whose short id is taken or retired.
	ErrShortIDExists = errors.New("short id exists")
	// ErrLinkNotFound is returned for unknown, expired or unreadable links.
	ErrLinkNotFound = errors.New("link not found")
	// ErrDecode is returned when stored cipher text cannot be turned back into a valid URL.
	ErrDecode = errors.New("decode error")
	// ErrStoreTimeout is returned when a store lookup exceeds its hard bound.
	ErrStoreTimeout = errors.New("store timeout")
	// ErrRateLimited is returned when an action endpoint refuses admission.
	ErrRateLimited = errors.New("rate limited")
	// ErrDomainNotFound is returned by a sensitive-domain registry on a miss.
	ErrDomainNotFound = errors.New("domain not found")
)
