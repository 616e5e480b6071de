package linkstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/link-gateway/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Insert(ctx context.Context, link *entity.WrappedLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *mockRepository) SelectByShortID(ctx context.Context, shortID string) (*entity.WrappedLink, error) {
	args := m.Called(ctx, shortID)
	if link, ok := args.Get(0).(*entity.WrappedLink); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepository) ShortIDTaken(ctx context.Context, shortID string) (bool, error) {
	args := m.Called(ctx, shortID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) IncrementClicks(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) Stats(ctx context.Context, ownerID string, topDomains int) (*entity.Stats, error) {
	args := m.Called(ctx, ownerID, topDomains)
	if stats, ok := args.Get(0).(*entity.Stats); ok {
		return stats, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, shortID string, upd entity.LinkUpdate) (*entity.WrappedLink, error) {
	args := m.Called(ctx, shortID, upd)
	if link, ok := args.Get(0).(*entity.WrappedLink); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}

type StoreTestSuite struct {
	suite.Suite
	errUnknown error
	now        time.Time
	repo       *mockRepository
	store      *Store
}

func (suite *StoreTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *StoreTestSuite) SetupSubTest() {
	suite.repo = new(mockRepository)
	suite.store = New(suite.repo,
		WithLookupTimeout(50*time.Millisecond),
		WithClock(func() time.Time { return suite.now }),
	)
}

func (suite *StoreTestSuite) TearDownSubTest() {
	suite.repo.AssertExpectations(suite.T())
}

func (suite *StoreTestSuite) TestReserveShortID() {
	suite.Run("free candidate", func() {
		suite.repo.On("ShortIDTaken", mock.Anything, "mylink").Return(false, nil).Once()

		shortID, err := suite.store.ReserveShortID(context.Background(), "mylink")

		suite.NoError(err)
		suite.Equal("mylink", shortID)
	})

	suite.Run("taken candidate falls back to random", func() {
		suite.repo.On("ShortIDTaken", mock.Anything, "mylink").Return(true, nil).Once()
		suite.repo.On("ShortIDTaken", mock.Anything, mock.Anything).Return(false, nil).Once()

		shortID, err := suite.store.ReserveShortID(context.Background(), "mylink")

		suite.NoError(err)
		suite.NotEqual("mylink", shortID)
		suite.Regexp(regexp.MustCompile(`^[0-9A-Za-z]{12}$`), shortID)
	})

	suite.Run("collisions exhaust the budget", func() {
		suite.repo.On("ShortIDTaken", mock.Anything, mock.Anything).Return(true, nil).Times(maxReserveAttempts)

		shortID, err := suite.store.ReserveShortID(context.Background(), "")

		suite.ErrorIs(err, entity.ErrAllocationExhausted)
		suite.Empty(shortID)
	})

	suite.Run("regenerates after a collision", func() {
		suite.repo.On("ShortIDTaken", mock.Anything, mock.Anything).Return(true, nil).Times(maxReserveAttempts - 1)
		suite.repo.On("ShortIDTaken", mock.Anything, mock.Anything).Return(false, nil).Once()

		shortID, err := suite.store.ReserveShortID(context.Background(), "")

		suite.NoError(err)
		suite.Len(shortID, DefaultShortIDLength)
	})

	suite.Run("store error", func() {
		suite.repo.On("ShortIDTaken", mock.Anything, mock.Anything).Return(false, suite.errUnknown).Once()

		_, err := suite.store.ReserveShortID(context.Background(), "")

		suite.ErrorIs(err, suite.errUnknown)
		suite.NotErrorIs(err, entity.ErrAllocationExhausted)
	})
}

func (suite *StoreTestSuite) TestFindByShortID() {
	link := &entity.WrappedLink{ID: "1", ShortID: "abc", Kind: entity.KindNormal, Domain: "example.com"}

	suite.Run("found", func() {
		suite.repo.On("SelectByShortID", mock.Anything, "abc").Return(link, nil).Once()

		got, err := suite.store.FindByShortID(context.Background(), "abc")

		suite.NoError(err)
		suite.Equal(link, got)
	})

	suite.Run("not found", func() {
		suite.repo.On("SelectByShortID", mock.Anything, "abc").Return(nil, entity.ErrLinkNotFound).Once()

		got, err := suite.store.FindByShortID(context.Background(), "abc")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(got)
	})

	suite.Run("store error reads as not found", func() {
		suite.repo.On("SelectByShortID", mock.Anything, "abc").Return(nil, suite.errUnknown).Once()

		got, err := suite.store.FindByShortID(context.Background(), "abc")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(got)
	})

	suite.Run("slow store times out", func() {
		suite.repo.On("SelectByShortID", mock.Anything, "abc").
			After(time.Second).
			Return(link, nil).
			Once()

		start := time.Now()
		got, err := suite.store.FindByShortID(context.Background(), "abc")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.ErrorIs(err, entity.ErrStoreTimeout)
		suite.Nil(got)
		suite.Less(time.Since(start), 500*time.Millisecond)

		// Let the blocked call finish before expectations are checked.
		time.Sleep(time.Second)
	})

	suite.Run("expired", func() {
		exp := suite.now
		expired := link.Clone()
		expired.ExpiresAt = &exp
		suite.repo.On("SelectByShortID", mock.Anything, "abc").Return(expired, nil).Once()

		got, err := suite.store.FindByShortID(context.Background(), "abc")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(got)
	})

	suite.Run("unknown kind fails closed", func() {
		bad := link.Clone()
		bad.Kind = 0
		suite.repo.On("SelectByShortID", mock.Anything, "abc").Return(bad, nil).Once()

		got, err := suite.store.FindByShortID(context.Background(), "abc")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(got)
	})
}

func (suite *StoreTestSuite) TestIncrementClicks() {
	suite.Run("failure is swallowed", func() {
		suite.repo.On("IncrementClicks", mock.Anything, "1").Return(suite.errUnknown).Once()

		suite.NotPanics(func() {
			suite.store.IncrementClicks(context.Background(), "1")
		})
	})
}

func (suite *StoreTestSuite) TestDeleteExpired() {
	suite.Run("success", func() {
		suite.repo.On("DeleteExpired", mock.Anything, suite.now).Return(int64(3), nil).Once()

		n, err := suite.store.DeleteExpired(context.Background())

		suite.NoError(err)
		suite.Equal(int64(3), n)
	})

	suite.Run("unknown error", func() {
		suite.repo.On("DeleteExpired", mock.Anything, suite.now).Return(int64(0), suite.errUnknown).Once()

		_, err := suite.store.DeleteExpired(context.Background())

		suite.ErrorIs(err, suite.errUnknown)
	})
}

func (suite *StoreTestSuite) TestListByOwner() {
	suite.Run("empty ranking is never nil", func() {
		suite.repo.On("Stats", mock.Anything, "alice", entity.TopDomainsLimit).Return(&entity.Stats{}, nil).Once()

		stats, err := suite.store.ListByOwner(context.Background(), "alice")

		suite.NoError(err)
		suite.NotNil(stats.TopDomains)
		suite.Empty(stats.TopDomains)
	})

	suite.Run("unknown error", func() {
		suite.repo.On("Stats", mock.Anything, "alice", entity.TopDomainsLimit).Return(nil, suite.errUnknown).Once()

		stats, err := suite.store.ListByOwner(context.Background(), "alice")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(stats)
	})
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestStore_ConcurrentReservationsWithMemoryRepository(t *testing.T) {
	repo := memory.NewLinkRepository()
	store := New(repo)
	ctx := context.Background()

	const n = 200

	ids := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			shortID, err := store.ReserveShortID(ctx, "")
			if err != nil {
				errs[i] = err
				return
			}

			errs[i] = store.Insert(ctx, &entity.WrappedLink{
				ID:      fmt.Sprint(i),
				ShortID: shortID,
				Kind:    entity.KindNormal,
				Domain:  "example.com",
			})
			ids[i] = shortID
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		_, dup := seen[ids[i]]
		assert.False(t, dup, "duplicate short id %s", ids[i])
		seen[ids[i]] = struct{}{}
	}
}

func TestStore_RetiredShortIDIsNeverReserved(t *testing.T) {
	repo := memory.NewLinkRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := New(repo, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	exp := now.Add(-time.Minute)
	require.NoError(t, store.Insert(ctx, &entity.WrappedLink{
		ID:        "1",
		ShortID:   "retired1",
		Kind:      entity.KindNormal,
		Domain:    "example.com",
		ExpiresAt: &exp,
	}))

	_, err := store.FindByShortID(ctx, "retired1")
	assert.ErrorIs(t, err, entity.ErrLinkNotFound)

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	shortID, err := store.ReserveShortID(ctx, "retired1")
	require.NoError(t, err)
	assert.NotEqual(t, "retired1", shortID)
}
