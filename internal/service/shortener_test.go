package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/julioborgesigt/encurtador/internal/clicks"
	"github.com/julioborgesigt/encurtador/internal/config"
	"github.com/julioborgesigt/encurtador/internal/domain"
	"github.com/julioborgesigt/encurtador/internal/repository"
	"github.com/julioborgesigt/encurtador/internal/repository/memory"
)

// captureSink records submitted clicks so tests can assert on them.
type captureSink struct {
	clicks []*clicks.Click
	err    error
}

func (s *captureSink) SubmitClick(click *clicks.Click) error {
	if s.err != nil {
		return s.err
	}
	s.clicks = append(s.clicks, click)
	return nil
}

// MockStorage is a mock implementation of repository.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) UpsertGoogleUser(ctx context.Context, profile repository.GoogleProfile) (*domain.User, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockStorage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockStorage) FindByCode(ctx context.Context, code string) (*domain.URL, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.URL), args.Error(1)
}

func (m *MockStorage) FindDuplicateByURL(ctx context.Context, originalURL string) (*domain.URL, error) {
	args := m.Called(ctx, originalURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.URL), args.Error(1)
}

func (m *MockStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) Insert(ctx context.Context, url *domain.URL) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockStorage) DeleteByID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStorage) DeleteByCode(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockStorage) IncrementClicks(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStorage) ListUserLinks(ctx context.Context, userID int64, params repository.ListParams) ([]*domain.URL, int64, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.URL), args.Get(1).(int64), args.Error(2)
}

func (m *MockStorage) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Env: "local",
		Shortener: config.Shortener{
			BaseURL:             "http://localhost:8080",
			CodeLength:          7,
			MaxGenerateAttempts: 5,
			GuestExpirationDays: 7,
		},
	}
}

func newTestService(storage repository.Storage) (*ShortenerService, *captureSink) {
	sink := &captureSink{}
	return NewShortener(storage, sink, testConfig(), zap.NewNop()), sink
}

func TestCreateShortLink_Guest(t *testing.T) {
	ctx := context.Background()

	t.Run("clamps custom code, description and expiration", func(t *testing.T) {
		svc, _ := newTestService(memory.New())

		before := time.Now()
		url, err := svc.CreateShortLink(ctx, CreateRequest{
			URL:         "https://example.com/article",
			CustomCode:  "my-code",
			Description: "a description guests cannot keep",
			ExpiresIn:   intPtr(365),
		}, nil)

		require.NoError(t, err)
		assert.NotEqual(t, "my-code", url.ShortCode)
		assert.Len(t, url.ShortCode, 7)
		assert.False(t, url.IsCustom)
		assert.Nil(t, url.Description)
		assert.Nil(t, url.UserID)

		require.NotNil(t, url.ExpiresAt)
		expectedExpiry := before.AddDate(0, 0, 7)
		assert.WithinDuration(t, expectedExpiry, *url.ExpiresAt, time.Minute)
	})

	t.Run("guest with reserved code still succeeds", func(t *testing.T) {
		// Clamping happens before validation, so a guest submitting a
		// reserved code is not rejected for it.
		svc, _ := newTestService(memory.New())

		url, err := svc.CreateShortLink(ctx, CreateRequest{
			URL:        "https://example.com",
			CustomCode: "admin",
		}, nil)

		require.NoError(t, err)
		assert.NotEqual(t, "admin", url.ShortCode)
	})
}

func TestCreateShortLink_Validation(t *testing.T) {
	ctx := context.Background()
	requester := &Requester{UserID: 1, Email: "user@example.com"}

	t.Run("invalid URL", func(t *testing.T) {
		svc, _ := newTestService(memory.New())

		_, err := svc.CreateShortLink(ctx, CreateRequest{URL: "not a url"}, requester)

		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Contains(t, FieldsOf(err), "url")
	})

	t.Run("reserved code never reaches the store", func(t *testing.T) {
		mockStorage := &MockStorage{}
		svc, _ := newTestService(mockStorage)

		_, err := svc.CreateShortLink(ctx, CreateRequest{
			URL:        "https://example.com",
			CustomCode: "dashboard",
		}, requester)

		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Contains(t, FieldsOf(err), "customCode")
		mockStorage.AssertNotCalled(t, "CodeExists", mock.Anything, mock.Anything)
		mockStorage.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("multiple invalid fields reported together", func(t *testing.T) {
		svc, _ := newTestService(memory.New())

		_, err := svc.CreateShortLink(ctx, CreateRequest{
			URL:         "example dot com",
			CustomCode:  "a!",
			Description: strings.Repeat("x", 256),
		}, requester)

		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
		fields := FieldsOf(err)
		assert.Contains(t, fields, "url")
		assert.Contains(t, fields, "customCode")
		assert.Contains(t, fields, "description")
	})
}

func TestCreateShortLink_CustomCode(t *testing.T) {
	ctx := context.Background()
	requester := &Requester{UserID: 1, Email: "user@example.com"}

	t.Run("success", func(t *testing.T) {
		svc, _ := newTestService(memory.New())

		url, err := svc.CreateShortLink(ctx, CreateRequest{
			URL:         "https://example.com",
			CustomCode:  "my-link",
			Description: "launch page",
		}, requester)

		require.NoError(t, err)
		assert.Equal(t, "my-link", url.ShortCode)
		assert.True(t, url.IsCustom)
		require.NotNil(t, url.Description)
		assert.Equal(t, "launch page", *url.Description)
		require.NotNil(t, url.UserID)
		assert.Equal(t, int64(1), *url.UserID)
		assert.Nil(t, url.ExpiresAt)
	})

	t.Run("taken code reports conflict", func(t *testing.T) {
		store := memory.New()
		svc, _ := newTestService(store)

		_, err := svc.CreateShortLink(ctx, CreateRequest{
			URL:        "https://first.example.com",
			CustomCode: "my-link",
		}, requester)
		require.NoError(t, err)

		_, err = svc.CreateShortLink(ctx, CreateRequest{
			URL:        "https://second.example.com",
			CustomCode: "my-link",
		}, &Requester{UserID: 2, Email: "other@example.com"})

		require.Error(t, err)
		assert.Equal(t, KindCodeTaken, KindOf(err))
	})

	t.Run("insert race maps unique violation to conflict", func(t *testing.T) {
		mockStorage := &MockStorage{}
		svc, _ := newTestService(mockStorage)

		mockStorage.On("CodeExists", ctx, "my-link").Return(false, nil)
		mockStorage.On("Insert", ctx, mock.Anything).Return(repository.ErrCodeTaken)

		_, err := svc.CreateShortLink(ctx, CreateRequest{
			URL:        "https://example.com",
			CustomCode: "my-link",
		}, requester)

		require.Error(t, err)
		assert.Equal(t, KindCodeTaken, KindOf(err))
		mockStorage.AssertExpectations(t)
	})
}

func TestCreateShortLink_Deduplication(t *testing.T) {
	ctx := context.Background()
	requester := &Requester{UserID: 1, Email: "user@example.com"}

	t.Run("same URL twice returns the same link", func(t *testing.T) {
		svc, _ := newTestService(memory.New())

		first, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com/page"}, requester)
		require.NoError(t, err)

		second, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com/page"}, requester)
		require.NoError(t, err)

		assert.Equal(t, first.ShortCode, second.ShortCode)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("custom links are not reused by dedup", func(t *testing.T) {
		store := memory.New()
		svc, _ := newTestService(store)

		custom, err := svc.CreateShortLink(ctx, CreateRequest{
			URL:        "https://example.com/page",
			CustomCode: "branded",
		}, requester)
		require.NoError(t, err)

		generated, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com/page"}, requester)
		require.NoError(t, err)

		assert.NotEqual(t, custom.ShortCode, generated.ShortCode)
	})

	t.Run("expired duplicate is replaced with a fresh link", func(t *testing.T) {
		store := memory.New()
		svc, _ := newTestService(store)

		expired := time.Now().Add(-time.Hour)
		stale := &domain.URL{
			OriginalURL: "https://example.com/page",
			ShortCode:   "stale01",
			ExpiresAt:   &expired,
		}
		require.NoError(t, store.Insert(ctx, stale))

		fresh, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com/page"}, requester)
		require.NoError(t, err)

		assert.NotEqual(t, "stale01", fresh.ShortCode)
		_, err = store.FindByCode(ctx, "stale01")
		assert.ErrorIs(t, err, repository.ErrCodeNotFound)
	})
}

func TestGenerateUniqueCode_CollisionBudget(t *testing.T) {
	ctx := context.Background()
	requester := &Requester{UserID: 1, Email: "user@example.com"}

	t.Run("retries until a free code is found", func(t *testing.T) {
		mockStorage := &MockStorage{}
		svc, _ := newTestService(mockStorage)

		mockStorage.On("FindDuplicateByURL", ctx, "https://example.com").Return(nil, repository.ErrCodeNotFound)
		mockStorage.On("CodeExists", ctx, mock.Anything).Return(true, nil).Twice()
		mockStorage.On("CodeExists", ctx, mock.Anything).Return(false, nil).Once()
		mockStorage.On("Insert", ctx, mock.Anything).Return(nil)

		url, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com"}, requester)

		require.NoError(t, err)
		assert.Len(t, url.ShortCode, 7)
		mockStorage.AssertExpectations(t)
	})

	t.Run("exhausted budget widens the code", func(t *testing.T) {
		mockStorage := &MockStorage{}
		svc, _ := newTestService(mockStorage)

		mockStorage.On("FindDuplicateByURL", ctx, "https://example.com").Return(nil, repository.ErrCodeNotFound)
		// Every draw inside the budget collides; the widened draw is
		// accepted without a further existence check.
		mockStorage.On("CodeExists", ctx, mock.Anything).Return(true, nil).Times(5)
		mockStorage.On("Insert", ctx, mock.Anything).Return(nil)

		url, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com"}, requester)

		require.NoError(t, err)
		assert.Len(t, url.ShortCode, 9)
		mockStorage.AssertExpectations(t)
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	requester := &Requester{UserID: 1, Email: "user@example.com"}

	t.Run("returns destination and submits a click", func(t *testing.T) {
		store := memory.New()
		svc, sink := newTestService(store)

		created, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com/target"}, requester)
		require.NoError(t, err)

		destination, err := svc.Resolve(ctx, created.ShortCode)

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/target", destination)
		require.Len(t, sink.clicks, 1)
		assert.Equal(t, created.ID, sink.clicks[0].LinkID)
		assert.Equal(t, created.ShortCode, sink.clicks[0].ShortCode)
	})

	t.Run("unknown code", func(t *testing.T) {
		svc, _ := newTestService(memory.New())

		_, err := svc.Resolve(ctx, "missing")

		require.Error(t, err)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("expired link is gone, then not found", func(t *testing.T) {
		store := memory.New()
		svc, sink := newTestService(store)

		expired := time.Now().Add(-time.Minute)
		require.NoError(t, store.Insert(ctx, &domain.URL{
			OriginalURL: "https://example.com",
			ShortCode:   "expired",
			ExpiresAt:   &expired,
		}))

		_, err := svc.Resolve(ctx, "expired")
		require.Error(t, err)
		assert.Equal(t, KindGone, KindOf(err))
		assert.Empty(t, sink.clicks)

		// The lazy delete removed the record.
		_, err = svc.Resolve(ctx, "expired")
		require.Error(t, err)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("sink failure does not gate the redirect", func(t *testing.T) {
		store := memory.New()
		svc, sink := newTestService(store)
		sink.err = assert.AnError

		created, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com"}, requester)
		require.NoError(t, err)

		destination, err := svc.Resolve(ctx, created.ShortCode)

		require.NoError(t, err)
		assert.Equal(t, "https://example.com", destination)
	})
}

func TestDelete_Ownership(t *testing.T) {
	ctx := context.Background()
	owner := &Requester{UserID: 1, Email: "owner@example.com"}
	stranger := &Requester{UserID: 2, Email: "stranger@example.com"}

	t.Run("guest cannot delete", func(t *testing.T) {
		svc, _ := newTestService(memory.New())

		err := svc.Delete(ctx, "anything", nil)

		require.Error(t, err)
		assert.Equal(t, KindUnauthorized, KindOf(err))
	})

	t.Run("owner deletes own link", func(t *testing.T) {
		store := memory.New()
		svc, _ := newTestService(store)

		created, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com"}, owner)
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, created.ShortCode, owner))

		_, err = store.FindByCode(ctx, created.ShortCode)
		assert.ErrorIs(t, err, repository.ErrCodeNotFound)
	})

	t.Run("foreign link is forbidden", func(t *testing.T) {
		store := memory.New()
		svc, _ := newTestService(store)

		created, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com"}, owner)
		require.NoError(t, err)

		err = svc.Delete(ctx, created.ShortCode, stranger)

		require.Error(t, err)
		assert.Equal(t, KindForbidden, KindOf(err))
		_, findErr := store.FindByCode(ctx, created.ShortCode)
		assert.NoError(t, findErr)
	})

	t.Run("ownerless link is deletable by any authenticated user", func(t *testing.T) {
		store := memory.New()
		svc, _ := newTestService(store)

		require.NoError(t, store.Insert(ctx, &domain.URL{
			OriginalURL: "https://example.com",
			ShortCode:   "legacy1",
		}))

		require.NoError(t, svc.Delete(ctx, "legacy1", stranger))
	})

	t.Run("unknown code", func(t *testing.T) {
		svc, _ := newTestService(memory.New())

		err := svc.Delete(ctx, "missing", owner)

		require.Error(t, err)
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	owner := &Requester{UserID: 1, Email: "owner@example.com"}
	stranger := &Requester{UserID: 2, Email: "stranger@example.com"}

	t.Run("owner sees stats", func(t *testing.T) {
		store := memory.New()
		svc, _ := newTestService(store)

		created, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com"}, owner)
		require.NoError(t, err)
		require.NoError(t, store.IncrementClicks(ctx, created.ID))

		stats, err := svc.GetStats(ctx, created.ShortCode, owner)

		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Clicks)
		assert.NotNil(t, stats.LastAccessed)
	})

	t.Run("guest is unauthorized", func(t *testing.T) {
		svc, _ := newTestService(memory.New())

		_, err := svc.GetStats(ctx, "anything", nil)

		require.Error(t, err)
		assert.Equal(t, KindUnauthorized, KindOf(err))
	})

	t.Run("foreign link is forbidden", func(t *testing.T) {
		store := memory.New()
		svc, _ := newTestService(store)

		created, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com"}, owner)
		require.NoError(t, err)

		_, err = svc.GetStats(ctx, created.ShortCode, stranger)

		require.Error(t, err)
		assert.Equal(t, KindForbidden, KindOf(err))
	})
}

func TestListLinks(t *testing.T) {
	ctx := context.Background()
	owner := &Requester{UserID: 1, Email: "owner@example.com"}

	t.Run("guest gets an empty page", func(t *testing.T) {
		svc, _ := newTestService(memory.New())

		urls, total, err := svc.ListLinks(ctx, nil, repository.ListParams{Limit: 10})

		require.NoError(t, err)
		assert.Empty(t, urls)
		assert.Zero(t, total)
	})

	t.Run("returns only the requester's links", func(t *testing.T) {
		store := memory.New()
		svc, _ := newTestService(store)

		_, err := svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com/mine"}, owner)
		require.NoError(t, err)
		_, err = svc.CreateShortLink(ctx, CreateRequest{URL: "https://example.com/theirs"}, &Requester{UserID: 2})
		require.NoError(t, err)

		urls, total, err := svc.ListLinks(ctx, owner, repository.ListParams{Limit: 10})

		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, urls, 1)
		assert.Equal(t, "https://example.com/mine", urls[0].OriginalURL)
	})
}

func intPtr(v int) *int { return &v }
