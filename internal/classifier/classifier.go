// Package classifier maps destination URLs to a sensitivity class and a
// crawler-safe alias.
//
// Lookups go through the built-in table first, by exact hostname and then by
// registrable domain, and fall back to an administrable Registry. Every miss
// or registry failure classifies the destination as normal.
package classifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/vadimbarashkov/link-gateway/internal/entity"
	"github.com/vadimbarashkov/link-gateway/internal/urlcheck"
	"golang.org/x/net/publicsuffix"
)

const defaultLookupTimeout = 2 * time.Second

// Registry is the administrable sensitive-domain registry consulted after the built-in table.
// Lookup returns entity.ErrDomainNotFound on a miss.
type Registry interface {
	Lookup(ctx context.Context, domain string) (entity.RegistryEntry, error)
}

type Option func(*Classifier)

func WithLookupTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		c.lookupTimeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// WithEntries adds entries to the built-in table, replacing any with the same domain.
func WithEntries(entries ...entity.RegistryEntry) Option {
	return func(c *Classifier) {
		for _, e := range entries {
			c.addStatic(e)
		}
	}
}

// Classifier is safe for concurrent use once constructed.
type Classifier struct {
	static        map[string]entity.RegistryEntry
	registry      Registry
	lookupTimeout time.Duration
	logger        *slog.Logger
}

// New returns a Classifier backed by the built-in table and registry, which may be nil.
func New(registry Registry, opts ...Option) *Classifier {
	c := &Classifier{
		static:        make(map[string]entity.RegistryEntry, len(staticEntries)),
		registry:      registry,
		lookupTimeout: defaultLookupTimeout,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, e := range staticEntries {
		c.addStatic(e)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Classifier) addStatic(e entity.RegistryEntry) {
	domain := urlcheck.NormalizeHost(e.Domain)
	c.static[domain] = safeEntry(e)
}

// safeEntry swaps an alias that reveals its own category for the category default.
func safeEntry(e entity.RegistryEntry) entity.RegistryEntry {
	if e.Alias == "" || containsCategoryKeywords(e.Category, e.Alias) {
		e.Alias = AliasForCategory(e.Category)
	}
	return e
}

// Classify returns the classification of rawURL. It never fails: invalid URLs,
// misses and registry errors all classify as normal.
func (c *Classifier) Classify(ctx context.Context, rawURL string) entity.Classification {
	domain := urlcheck.Domain(rawURL)
	if domain == "" {
		return entity.Classification{Kind: entity.KindNormal}
	}

	if e, ok := c.lookupStatic(domain); ok {
		return sensitive(domain, e)
	}

	if e, ok := c.lookupRegistry(ctx, domain); ok {
		return sensitive(domain, e)
	}

	return entity.Classification{Kind: entity.KindNormal, Domain: domain}
}

// CrawlerSafeLabel returns the alias of domain when it is sensitive and fallback otherwise.
func (c *Classifier) CrawlerSafeLabel(ctx context.Context, domain, fallback string) string {
	if fallback == "" {
		fallback = DefaultLabel
	}
	return c.Classify(ctx, "https://"+domain).Label(fallback)
}

func (c *Classifier) lookupStatic(domain string) (entity.RegistryEntry, bool) {
	if e, ok := c.static[domain]; ok {
		return e, true
	}

	if net.ParseIP(domain) != nil {
		return entity.RegistryEntry{}, false
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil || registrable == domain {
		return entity.RegistryEntry{}, false
	}

	e, ok := c.static[registrable]
	return e, ok
}

func (c *Classifier) lookupRegistry(ctx context.Context, domain string) (entity.RegistryEntry, bool) {
	const op = "classifier.Classifier.lookupRegistry"

	if c.registry == nil {
		return entity.RegistryEntry{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	e, err := c.registry.Lookup(ctx, domain)
	if err != nil {
		if !errors.Is(err, entity.ErrDomainNotFound) {
			c.logger.Warn("sensitive domain lookup failed, classifying as normal",
				slog.String("op", op),
				slog.String("domain", domain),
				slog.Any("err", err),
			)
		}
		return entity.RegistryEntry{}, false
	}

	category, ok := entity.ParseCategory(string(e.Category))
	if !ok {
		c.logger.Warn("registry entry has unknown category, classifying as normal",
			slog.String("op", op),
			slog.String("domain", domain),
			slog.String("category", string(e.Category)),
		)
		return entity.RegistryEntry{}, false
	}
	e.Category = category

	return safeEntry(e), true
}

func sensitive(domain string, e entity.RegistryEntry) entity.Classification {
	return entity.Classification{
		Kind:     entity.KindSensitive,
		Category: e.Category,
		Alias:    e.Alias,
		Domain:   domain,
	}
}
