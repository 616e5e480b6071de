package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/link-gateway/internal/classifier"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
	"github.com/vadimbarashkov/link-gateway/internal/ratelimit"
	"github.com/vadimbarashkov/link-gateway/internal/urlcheck"
	"golang.org/x/sync/errgroup"
)

const (
	maxInsertAttempts       = 5
	maxTitleAliasLength     = 255
	defaultBatchConcurrency = 8
	maxTTLHours             = 87600
)

var customAliasPattern = regexp.MustCompile(`^[A-Za-z0-9]{3,32}$`)

type linkStore interface {
	ReserveShortID(ctx context.Context, candidate string) (string, error)
	Insert(ctx context.Context, link *entity.WrappedLink) error
	FindByShortID(ctx context.Context, shortID string) (*entity.WrappedLink, error)
	IncrementClicks(ctx context.Context, id string)
	DeleteExpired(ctx context.Context) (int64, error)
	ListByOwner(ctx context.Context, ownerID string) (*entity.Stats, error)
	UpdateMeta(ctx context.Context, shortID string, upd entity.LinkUpdate) (*entity.WrappedLink, error)
}

type urlCipher interface {
	Encode(rawURL string) (string, error)
	Decode(ciphertext string) (string, error)
}

type domainClassifier interface {
	Classify(ctx context.Context, rawURL string) entity.Classification
}

type botSentinel interface {
	Classify(userAgent, path string) entity.BotVerdict
	SafeHeaders(isBot bool) http.Header
}

type rateLimiter interface {
	Admit(ctx context.Context, identity, routeClass string, maxRequests int, window time.Duration) bool
}

// Action is the abstract outcome of a resolve or continue request.
type Action string

const (
	ActionRedirect     Action = "redirect"
	ActionInterstitial Action = "interstitial"
	ActionNotFound     Action = "not_found"
	ActionBlocked      Action = "blocked"
	ActionRateLimited  Action = "rate_limited"
)

// Outcome is what the gateway decided for one request. Headers are always set.
type Outcome struct {
	Action      Action
	ShortID     string
	Target      string
	Headers     http.Header
	Alias       string
	Category    entity.Category
	Description string
}

type CreateParams struct {
	URL     string
	OwnerID string
	// TTLHours is nil for links that never expire. Zero expires the link at creation.
	TTLHours    *int
	CustomAlias string
	// StrictAlias fails the creation instead of falling back to a random id
	// when CustomAlias is taken.
	StrictAlias bool
}

type BatchParams struct {
	OwnerID  string
	TTLHours *int
}

// RateLimits configures the quotas applied per client IP.
type RateLimits struct {
	Redirect ratelimit.Limit
	Continue ratelimit.Limit
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

func WithRateLimits(limits RateLimits) Option {
	return func(g *Gateway) {
		g.limits = limits
	}
}

func WithBatchConcurrency(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.batchConcurrency = n
		}
	}
}

// Gateway orchestrates link creation and resolution. It holds no per-request
// state; click increments started by resolutions are tracked so Drain can
// wait for them.
type Gateway struct {
	store      linkStore
	cipher     urlCipher
	classifier domainClassifier
	sentinel   botSentinel
	limiter    rateLimiter

	limits           RateLimits
	batchConcurrency int
	now              func() time.Time
	newID            func() string
	logger           *slog.Logger

	clicks sync.WaitGroup
}

func New(
	store linkStore,
	cipher urlCipher,
	classifier domainClassifier,
	sentinel botSentinel,
	limiter rateLimiter,
	opts ...Option,
) *Gateway {
	g := &Gateway{
		store:            store,
		cipher:           cipher,
		classifier:       classifier,
		sentinel:         sentinel,
		limiter:          limiter,
		batchConcurrency: defaultBatchConcurrency,
		now:              time.Now,
		newID:            uuid.NewString,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *Gateway) CreateLink(ctx context.Context, p CreateParams) (*entity.LinkView, error) {
	const op = "usecase.Gateway.CreateLink"

	if err := urlcheck.Validate(p.URL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p.CustomAlias != "" && !customAliasPattern.MatchString(p.CustomAlias) {
		return nil, fmt.Errorf("%s: %w: malformed alias", op, entity.ErrValidation)
	}
	// The short id is public: it appears in /l/ urls and on the interstitial.
	if classifier.ContainsSensitiveKeywords(p.CustomAlias) {
		return nil, fmt.Errorf("%s: %w: alias contains sensitive keywords", op, entity.ErrValidation)
	}
	if p.TTLHours != nil && (*p.TTLHours < 0 || *p.TTLHours > maxTTLHours) {
		return nil, fmt.Errorf("%s: %w: ttl out of range", op, entity.ErrValidation)
	}

	cls := g.classifier.Classify(ctx, p.URL)

	encrypted, err := g.cipher.Encode(p.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encrypt url: %w", op, err)
	}

	createdAt := g.now().UTC()

	var expiresAt *time.Time
	if p.TTLHours != nil {
		exp := createdAt.Add(time.Duration(*p.TTLHours) * time.Hour)
		expiresAt = &exp
	}

	candidate := p.CustomAlias

	for i := 0; i < maxInsertAttempts; i++ {
		shortID, err := g.store.ReserveShortID(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to reserve short id: %w", op, err)
		}
		if p.StrictAlias && candidate != "" && shortID != candidate {
			return nil, fmt.Errorf("%s: %w: alias taken", op, entity.ErrValidation)
		}

		link := &entity.WrappedLink{
			ID:           g.newID(),
			ShortID:      shortID,
			EncryptedURL: encrypted,
			Kind:         cls.Kind,
			Domain:       cls.Domain,
			Category:     cls.Category,
			TitleAlias:   cls.Label(classifier.DefaultLabel),
			CreatedAt:    createdAt,
			ExpiresAt:    expiresAt,
			CreatedBy:    p.OwnerID,
		}

		if err := g.store.Insert(ctx, link); err != nil {
			if errors.Is(err, entity.ErrShortIDExists) {
				if p.StrictAlias && candidate != "" {
					return nil, fmt.Errorf("%s: %w: alias taken", op, entity.ErrValidation)
				}

				candidate = ""
				continue
			}

			return nil, fmt.Errorf("%s: failed to insert link: %w", op, err)
		}

		return toView(link, p.URL), nil
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrAllocationExhausted)
}

// CreateMany creates links for urls concurrently. Invalid urls are skipped;
// the returned views keep the order of the valid urls. Store failures are
// joined into the returned error and are retryable.
func (g *Gateway) CreateMany(ctx context.Context, urls []string, p BatchParams) ([]*entity.LinkView, error) {
	const op = "usecase.Gateway.CreateMany"

	views := make([]*entity.LinkView, len(urls))
	errs := make([]error, len(urls))

	var eg errgroup.Group
	eg.SetLimit(g.batchConcurrency)

	for i, rawURL := range urls {
		i, rawURL := i, rawURL
		eg.Go(func() error {
			view, err := g.CreateLink(ctx, CreateParams{
				URL:      rawURL,
				OwnerID:  p.OwnerID,
				TTLHours: p.TTLHours,
			})
			if err != nil {
				if errors.Is(err, entity.ErrValidation) {
					g.logger.Info("skipping invalid url in batch",
						slog.String("op", op),
						slog.Int("index", i),
						slog.Any("err", err),
					)
					return nil
				}

				errs[i] = err
				return nil
			}

			views[i] = view
			return nil
		})
	}

	_ = eg.Wait()

	created := make([]*entity.LinkView, 0, len(urls))
	for _, v := range views {
		if v != nil {
			created = append(created, v)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return created, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

// ResolveLink serves the first hop of a wrapped link. It never blocks and
// never reports rate limiting; a refused admission only skips click accounting.
func (g *Gateway) ResolveLink(ctx context.Context, shortID string, meta entity.RequesterMeta) Outcome {
	const op = "usecase.Gateway.ResolveLink"

	path := meta.Path
	if path == "" {
		path = "/l/" + shortID
	}

	verdict := g.sentinel.Classify(meta.UserAgent, path)
	headers := g.sentinel.SafeHeaders(verdict.IsBot)

	admitted := g.limiter.Admit(ctx, meta.ClientIP, ratelimit.RouteRedirect, g.limits.Redirect.MaxRequests, g.limits.Redirect.Window)
	if !admitted {
		g.logger.Info("redirect over rate limit, click not counted",
			slog.String("op", op),
			slog.String("short_id", shortID),
		)
	}

	link, target, ok := g.lookup(ctx, op, shortID)
	if !ok {
		return notFound(headers)
	}

	if link.Kind == entity.KindSensitive {
		return Outcome{
			Action:      ActionInterstitial,
			ShortID:     link.ShortID,
			Headers:     headers,
			Alias:       classifier.SanitizeForCrawlers(link.TitleAlias),
			Category:    link.Category,
			Description: classifier.SanitizeForCrawlers(classifier.DescribeCategory(link.Category)),
		}
	}

	if admitted {
		g.countClick(ctx, link.ID)
	}

	return Outcome{
		Action:   ActionRedirect,
		ShortID:  link.ShortID,
		Target:   target,
		Headers:  headers,
		Alias:    link.TitleAlias,
		Category: link.Category,
	}
}

// RecordVerifiedContinue serves the human-activated second hop.
func (g *Gateway) RecordVerifiedContinue(ctx context.Context, shortID string, meta entity.RequesterMeta) Outcome {
	const op = "usecase.Gateway.RecordVerifiedContinue"

	path := meta.Path
	if path == "" {
		path = "/go/" + shortID + "/continue"
	}

	verdict := g.sentinel.Classify(meta.UserAgent, path)
	headers := g.sentinel.SafeHeaders(verdict.IsBot)

	if verdict.ShouldBlock {
		g.logger.Info("blocked crawler on action endpoint",
			slog.String("op", op),
			slog.String("short_id", shortID),
			slog.String("reason", verdict.Reason),
		)
		return Outcome{Action: ActionBlocked, Headers: headers}
	}

	if !g.limiter.Admit(ctx, meta.ClientIP, ratelimit.RouteContinue, g.limits.Continue.MaxRequests, g.limits.Continue.Window) {
		return Outcome{Action: ActionRateLimited, Headers: headers}
	}

	link, target, ok := g.lookup(ctx, op, shortID)
	if !ok {
		return notFound(headers)
	}

	g.countClick(ctx, link.ID)

	return Outcome{
		Action:   ActionRedirect,
		ShortID:  link.ShortID,
		Target:   target,
		Headers:  headers,
		Alias:    link.TitleAlias,
		Category: link.Category,
	}
}

// lookup finds a live link and decrypts its destination. Every failure is
// logged and reported as a miss.
func (g *Gateway) lookup(ctx context.Context, op, shortID string) (*entity.WrappedLink, string, bool) {
	link, err := g.store.FindByShortID(ctx, shortID)
	if err != nil {
		level := slog.LevelDebug
		if !errors.Is(err, entity.ErrLinkNotFound) || errors.Is(err, entity.ErrStoreTimeout) {
			level = slog.LevelWarn
		}
		g.logger.Log(ctx, level, "link lookup failed",
			slog.String("op", op),
			slog.String("short_id", shortID),
			slog.Any("err", err),
		)
		return nil, "", false
	}

	target, err := g.cipher.Decode(link.EncryptedURL)
	if err != nil {
		g.logger.Error("failed to decode stored url",
			slog.String("op", op),
			slog.String("short_id", shortID),
			slog.Any("err", err),
		)
		return nil, "", false
	}

	return link, target, true
}

func (g *Gateway) countClick(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)

	g.clicks.Add(1)
	go func() {
		defer g.clicks.Done()
		g.store.IncrementClicks(ctx, id)
	}()
}

// Drain waits for in-flight click increments or for ctx to end.
func (g *Gateway) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.clicks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateLink changes the title alias or expiry of a live link. The kind,
// domain and category fixed at creation are never recomputed.
func (g *Gateway) UpdateLink(ctx context.Context, shortID string, upd entity.LinkUpdate) (*entity.LinkView, error) {
	const op = "usecase.Gateway.UpdateLink"

	if upd.ClearExpiry && upd.ExpiresAt != nil {
		return nil, fmt.Errorf("%s: %w: expiry both set and cleared", op, entity.ErrValidation)
	}

	link, err := g.store.FindByShortID(ctx, shortID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if upd.TitleAlias != nil {
		alias := strings.TrimSpace(*upd.TitleAlias)
		switch {
		case alias == "" && link.Kind == entity.KindSensitive:
			alias = classifier.AliasForCategory(link.Category)
		case alias == "":
			alias = classifier.DefaultLabel
		case len(alias) > maxTitleAliasLength:
			return nil, fmt.Errorf("%s: %w: alias too long", op, entity.ErrValidation)
		case classifier.ContainsSensitiveKeywords(alias):
			return nil, fmt.Errorf("%s: %w: alias is not crawler safe", op, entity.ErrValidation)
		}
		upd.TitleAlias = &alias
	}

	updated, err := g.store.UpdateMeta(ctx, shortID, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update link: %w", op, err)
	}

	target, err := g.cipher.Decode(updated.EncryptedURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrLinkNotFound, err)
	}

	return toView(updated, target), nil
}

func (g *Gateway) GetStats(ctx context.Context, ownerID string) (*entity.Stats, error) {
	const op = "usecase.Gateway.GetStats"

	stats, err := g.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get stats: %w", op, err)
	}

	return stats, nil
}

func (g *Gateway) PurgeExpired(ctx context.Context) (int64, error) {
	const op = "usecase.Gateway.PurgeExpired"

	n, err := g.store.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to purge expired links: %w", op, err)
	}

	return n, nil
}

func notFound(headers http.Header) Outcome {
	return Outcome{Action: ActionNotFound, Headers: headers}
}

func toView(link *entity.WrappedLink, originalURL string) *entity.LinkView {
	return &entity.LinkView{
		ID:          link.ID,
		ShortID:     link.ShortID,
		OriginalURL: originalURL,
		Kind:        link.Kind,
		Domain:      link.Domain,
		Category:    link.Category,
		Alias:       link.TitleAlias,
		ClickCount:  link.ClickCount,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	}
}
