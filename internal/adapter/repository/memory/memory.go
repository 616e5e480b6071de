// Package memory provides concurrency-safe in-memory implementations of the
// link repository and the sensitive-domain registry.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vadimbarashkov/link-gateway/internal/entity"
)

// LinkRepository keeps links in process memory. Short ids of deleted links
// stay retired for the lifetime of the repository.
type LinkRepository struct {
	mu      sync.RWMutex
	links   map[string]*entity.WrappedLink
	ids     map[string]string // link id to short id
	retired map[string]struct{}
}

func NewLinkRepository() *LinkRepository {
	return &LinkRepository{
		links:   make(map[string]*entity.WrappedLink),
		ids:     make(map[string]string),
		retired: make(map[string]struct{}),
	}
}

func (r *LinkRepository) Insert(ctx context.Context, link *entity.WrappedLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takenLocked(link.ShortID) {
		return entity.ErrShortIDExists
	}

	r.links[link.ShortID] = link.Clone()
	r.ids[link.ID] = link.ShortID
	return nil
}

func (r *LinkRepository) SelectByShortID(ctx context.Context, shortID string) (*entity.WrappedLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[shortID]
	if !ok {
		return nil, entity.ErrLinkNotFound
	}

	return link.Clone(), nil
}

func (r *LinkRepository) ShortIDTaken(ctx context.Context, shortID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.takenLocked(shortID), nil
}

func (r *LinkRepository) takenLocked(shortID string) bool {
	if _, ok := r.links[shortID]; ok {
		return true
	}
	_, ok := r.retired[shortID]
	return ok
}

func (r *LinkRepository) IncrementClicks(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[r.ids[id]]
	if !ok {
		return entity.ErrLinkNotFound
	}

	link.ClickCount++
	return nil
}

func (r *LinkRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for shortID, link := range r.links {
		if link.Expired(now) {
			delete(r.links, shortID)
			delete(r.ids, link.ID)
			r.retired[shortID] = struct{}{}
			deleted++
		}
	}

	return deleted, nil
}

func (r *LinkRepository) Stats(ctx context.Context, ownerID string, topDomains int) (*entity.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &entity.Stats{}
	byDomain := make(map[string]*entity.DomainCount)

	for _, link := range r.links {
		if ownerID != "" && link.CreatedBy != ownerID {
			continue
		}

		stats.TotalClicks += link.ClickCount
		switch link.Kind {
		case entity.KindNormal:
			stats.NormalLinks++
		case entity.KindSensitive:
			stats.SensitiveLinks++
		}

		dc, ok := byDomain[link.Domain]
		if !ok {
			dc = &entity.DomainCount{Domain: link.Domain}
			byDomain[link.Domain] = dc
		}
		dc.Links++
		dc.Clicks += link.ClickCount
	}

	stats.TopDomains = make([]entity.DomainCount, 0, len(byDomain))
	for _, dc := range byDomain {
		stats.TopDomains = append(stats.TopDomains, *dc)
	}

	sort.Slice(stats.TopDomains, func(i, j int) bool {
		a, b := stats.TopDomains[i], stats.TopDomains[j]
		if a.Clicks != b.Clicks {
			return a.Clicks > b.Clicks
		}
		return a.Domain < b.Domain
	})

	if topDomains > 0 && len(stats.TopDomains) > topDomains {
		stats.TopDomains = stats.TopDomains[:topDomains]
	}

	return stats, nil
}

func (r *LinkRepository) Update(ctx context.Context, shortID string, upd entity.LinkUpdate) (*entity.WrappedLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[shortID]
	if !ok {
		return nil, entity.ErrLinkNotFound
	}

	if upd.TitleAlias != nil {
		link.TitleAlias = *upd.TitleAlias
	}

	switch {
	case upd.ClearExpiry:
		link.ExpiresAt = nil
	case upd.ExpiresAt != nil:
		exp := *upd.ExpiresAt
		link.ExpiresAt = &exp
	}

	return link.Clone(), nil
}

// DomainRegistry is an administrable in-memory sensitive-domain registry.
type DomainRegistry struct {
	mu      sync.RWMutex
	entries map[string]entity.RegistryEntry
}

func NewDomainRegistry(entries ...entity.RegistryEntry) *DomainRegistry {
	r := &DomainRegistry{entries: make(map[string]entity.RegistryEntry, len(entries))}
	for _, e := range entries {
		r.entries[e.Domain] = e
	}
	return r
}

func (r *DomainRegistry) Lookup(ctx context.Context, domain string) (entity.RegistryEntry, error) {
	if err := ctx.Err(); err != nil {
		return entity.RegistryEntry{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[domain]
	if !ok {
		return entity.RegistryEntry{}, entity.ErrDomainNotFound
	}

	return e, nil
}

// Put adds or replaces a registry entry.
func (r *DomainRegistry) Put(ctx context.Context, e entity.RegistryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[e.Domain] = e
	return nil
}

func (r *DomainRegistry) Remove(ctx context.Context, domain string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[domain]; !ok {
		return entity.ErrDomainNotFound
	}

	delete(r.entries, domain)
	return nil
}
