package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/link-gateway/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/link-gateway/internal/cipher"
	"github.com/vadimbarashkov/link-gateway/internal/classifier"
	"github.com/vadimbarashkov/link-gateway/internal/config"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
	"github.com/vadimbarashkov/link-gateway/internal/linkstore"
	"github.com/vadimbarashkov/link-gateway/internal/ratelimit"
	"github.com/vadimbarashkov/link-gateway/internal/sentinel"
	"github.com/vadimbarashkov/link-gateway/internal/usecase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedRegistry(t *testing.T) {
	registry := memory.NewDomainRegistry()

	err := seedRegistry(context.Background(), registry, []entity.RegistryEntry{
		{Domain: "example-casino.com", Category: entity.CategoryGambling, Alias: "Entertainment Site"},
	})
	require.NoError(t, err)

	e, err := registry.Lookup(context.Background(), "example-casino.com")
	require.NoError(t, err)
	assert.Equal(t, entity.CategoryGambling, e.Category)

	c := classifier.New(registry).Classify(context.Background(), "https://example-casino.com/slots")
	assert.Equal(t, entity.KindSensitive, c.Kind)
}

func TestSeedRegistry_MixedCaseDomain(t *testing.T) {
	registry := memory.NewDomainRegistry()

	cfg := config.Registry{Domains: []config.RegistryDomain{
		{Domain: "WWW.Example-Casino.com", Category: "Gambling", Alias: "Entertainment Site"},
	}}
	require.NoError(t, seedRegistry(context.Background(), registry, cfg.Entries()))

	c := classifier.New(registry).Classify(context.Background(), "https://www.example-casino.com/slots")
	assert.Equal(t, entity.KindSensitive, c.Kind)
	assert.Equal(t, "Entertainment Site", c.Label(""))
}

func TestNewSentinel(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := newSentinel(config.Bots{})
		require.NoError(t, err)

		assert.True(t, s.Classify("facebookexternalhit/1.1", "/go/abc/continue").ShouldBlock)
	})

	t.Run("patterns file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bots.yml")
		require.NoError(t, os.WriteFile(path, []byte("major_platform:\n  - examplebot\n"), 0o600))

		s, err := newSentinel(config.Bots{PatternsFile: path, ActionPrefixes: []string{"/act/"}})
		require.NoError(t, err)

		assert.True(t, s.Classify("ExampleBot/2.0", "/act/now").ShouldBlock)
		assert.False(t, s.Classify("ExampleBot/2.0", "/go/abc/continue").ShouldBlock)
	})

	t.Run("missing patterns file", func(t *testing.T) {
		_, err := newSentinel(config.Bots{PatternsFile: "invalid/path/bots.yml"})
		assert.Error(t, err)
	})
}

func TestNewLimiter_WithoutRedis(t *testing.T) {
	l, closeFn := newLimiter(context.Background(), config.Redis{}, discardLogger())
	defer closeFn()

	_, ok := l.(*ratelimit.MemoryLimiter)
	assert.True(t, ok)
}

func TestRunSweeper(t *testing.T) {
	repo := memory.NewLinkRepository()
	c, err := cipher.New("test-secret-0123456789abcdef")
	require.NoError(t, err)

	gw := usecase.New(
		linkstore.New(repo),
		c,
		classifier.New(nil),
		sentinel.New(),
		ratelimit.NewMemoryLimiter(),
	)

	zero := 0
	view, err := gw.CreateLink(context.Background(), usecase.CreateParams{
		URL:      "https://example.com/article",
		TTLHours: &zero,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runSweeper(ctx, gw, 10*time.Millisecond, discardLogger())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := repo.SelectByShortID(context.Background(), view.ShortID)
		return err != nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestToLimit(t *testing.T) {
	l := toLimit(config.Limit{MaxRequests: 5, Window: time.Minute})

	assert.Equal(t, ratelimit.Limit{MaxRequests: 5, Window: time.Minute}, l)
	assert.True(t, l.Enabled())
}
