// Package linkstore persists wrapped links and allocates their short ids.
//
// Store adds the gateway's storage policy on top of a Repository: bounded
// random id allocation, a hard bound on lookups that is independent of the
// driver, expiry filtering on read and best effort click accounting.
package linkstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vadimbarashkov/link-gateway/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// ShortIDAlphabet is the alphabet of generated short ids.
	ShortIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	DefaultShortIDLength = 12
	DefaultLookupTimeout = 5 * time.Second
	DefaultClickTimeout  = 2 * time.Second

	maxReserveAttempts = 5
)

// Repository is the persistence collaborator of the store.
type Repository interface {
	// Insert saves a new link. It returns entity.ErrShortIDExists when the
	// short id is taken or was ever used before.
	Insert(ctx context.Context, link *entity.WrappedLink) error
	// SelectByShortID returns entity.ErrLinkNotFound on a miss.
	SelectByShortID(ctx context.Context, shortID string) (*entity.WrappedLink, error)
	// ShortIDTaken reports whether the short id is live or retired.
	ShortIDTaken(ctx context.Context, shortID string) (bool, error)
	IncrementClicks(ctx context.Context, id string) error
	// DeleteExpired removes every link expired at now and retires its short id.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Stats(ctx context.Context, ownerID string, topDomains int) (*entity.Stats, error)
	// Update applies a metadata update. It returns entity.ErrLinkNotFound on a miss.
	Update(ctx context.Context, shortID string, upd entity.LinkUpdate) (*entity.WrappedLink, error)
}

type Option func(*Store)

func WithShortIDLength(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.idLength = n
		}
	}
}

func WithLookupTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lookupTimeout = d
		}
	}
}

func WithClickTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.clickTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

type Store struct {
	repo          Repository
	idLength      int
	lookupTimeout time.Duration
	clickTimeout  time.Duration
	now           func() time.Time
	logger        *slog.Logger
	generate      func(length int) (string, error)
}

func New(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:          repo,
		idLength:      DefaultShortIDLength,
		lookupTimeout: DefaultLookupTimeout,
		clickTimeout:  DefaultClickTimeout,
		now:           time.Now,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		generate: func(length int) (string, error) {
			return gonanoid.Generate(ShortIDAlphabet, length)
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ReserveShortID returns an unused short id. A non-empty candidate is returned
// as is when it is free; otherwise random ids are tried.
func (s *Store) ReserveShortID(ctx context.Context, candidate string) (string, error) {
	const op = "linkstore.Store.ReserveShortID"

	if candidate != "" {
		taken, err := s.repo.ShortIDTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check candidate: %w", op, err)
		}
		if !taken {
			return candidate, nil
		}
	}

	for i := 0; i < maxReserveAttempts; i++ {
		shortID, err := s.generate(s.idLength)
		if err != nil {
			return "", fmt.Errorf("%s: failed to generate short id: %w", op, err)
		}

		taken, err := s.repo.ShortIDTaken(ctx, shortID)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check short id: %w", op, err)
		}
		if !taken {
			return shortID, nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, entity.ErrAllocationExhausted)
}

func (s *Store) Insert(ctx context.Context, link *entity.WrappedLink) error {
	const op = "linkstore.Store.Insert"

	if err := s.repo.Insert(ctx, link); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type lookupResult struct {
	link *entity.WrappedLink
	err  error
}

// FindByShortID returns the live link with the given short id. Every failure,
// including a lookup running past the store's bound, is reported as
// entity.ErrLinkNotFound with the cause wrapped alongside it.
func (s *Store) FindByShortID(ctx context.Context, shortID string) (*entity.WrappedLink, error) {
	const op = "linkstore.Store.FindByShortID"

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		link, err := s.repo.SelectByShortID(ctx, shortID)
		done <- lookupResult{link: link, err: err}
	}()

	var res lookupResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrLinkNotFound, entity.ErrStoreTimeout)
	case res = <-done:
	}

	if res.err != nil {
		if errors.Is(res.err, entity.ErrLinkNotFound) {
			return nil, fmt.Errorf("%s: %w", op, res.err)
		}
		if errors.Is(res.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrLinkNotFound, entity.ErrStoreTimeout)
		}

		return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrLinkNotFound, res.err)
	}

	link := res.link
	if link == nil || link.Kind.Hops() == 0 {
		return nil, fmt.Errorf("%s: unreadable record: %w", op, entity.ErrLinkNotFound)
	}
	if link.Expired(s.now()) {
		return nil, fmt.Errorf("%s: expired: %w", op, entity.ErrLinkNotFound)
	}

	return link, nil
}

// IncrementClicks bumps the advisory click counter. Failures are logged only.
func (s *Store) IncrementClicks(ctx context.Context, id string) {
	const op = "linkstore.Store.IncrementClicks"

	ctx, cancel := context.WithTimeout(ctx, s.clickTimeout)
	defer cancel()

	if err := s.repo.IncrementClicks(ctx, id); err != nil {
		s.logger.Warn("failed to increment clicks",
			slog.String("op", op),
			slog.String("link_id", id),
			slog.Any("err", err),
		)
	}
}

func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	const op = "linkstore.Store.DeleteExpired"

	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// ListByOwner aggregates the links created by ownerID. An empty owner
// aggregates every link.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) (*entity.Stats, error) {
	const op = "linkstore.Store.ListByOwner"

	stats, err := s.repo.Stats(ctx, ownerID, entity.TopDomainsLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if stats.TopDomains == nil {
		stats.TopDomains = []entity.DomainCount{}
	}

	return stats, nil
}

func (s *Store) UpdateMeta(ctx context.Context, shortID string, upd entity.LinkUpdate) (*entity.WrappedLink, error) {
	const op = "linkstore.Store.UpdateMeta"

	link, err := s.repo.Update(ctx, shortID, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return link, nil
}
