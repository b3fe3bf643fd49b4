package service

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/repository"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
)

func newTestCache(metrics *MetricsService) *CacheService {
	lru := expirable.NewLRU[string, []byte](32, nil, time.Minute)
	return NewCacheService(repository.NewMemoryCacheRepository(lru), metrics, time.Minute, zap.NewNop(), true)
}

func TestCacheKeyEscapesFreeText(t *testing.T) {
	assert.Equal(t, "users:list:STUDENT:mar%2A%5Bx%5D", cacheKey(cacheNamespaceUsers, "list", "STUDENT", "mar*[x]"))
}

func TestCacheServiceNilIsDisabled(t *testing.T) {
	var cache *CacheService
	var dest string
	assert.False(t, cache.Enabled())
	assert.False(t, cache.Get(context.Background(), "k", &dest))
	cache.Set(context.Background(), "k", "v")
	cache.Invalidate(context.Background(), cacheNamespaceUsers)
}

func TestCacheServiceRecordsHitRatio(t *testing.T) {
	metrics := NewMetricsService()
	cache := newTestCache(metrics)
	ctx := context.Background()

	var dest []string
	assert.False(t, cache.Get(ctx, "tasks:list", &dest))
	cache.Set(ctx, "tasks:list", []string{"a"})
	require.True(t, cache.Get(ctx, "tasks:list", &dest))
	assert.Equal(t, []string{"a"}, dest)
	assert.InDelta(t, 0.5, metrics.CacheHitRatio(), 1e-9)
}

func TestCachedReadsAreInvalidatedByWrites(t *testing.T) {
	store := newFakeStore()
	store.addUser(models.User{ID: "u-1", Username: "ana", FirstName: "Ana", LastName: "Ruiz", Role: models.RoleStudent})
	svc := newTestUserService(store)
	svc.cache = newTestCache(nil)
	ctx := context.Background()

	first, err := svc.List(ctx, models.UserFilter{})
	require.NoError(t, err)
	require.Len(t, first, 1)

	store.addUser(models.User{ID: "u-2", Username: "beto", FirstName: "Beto", LastName: "Soto", Role: models.RoleStudent})
	stale, err := svc.List(ctx, models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, stale, 1, "served from cache")

	require.NoError(t, svc.Delete(ctx, "u-2"))
	fresh, err := svc.List(ctx, models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
	assert.Equal(t, "u-1", fresh[0].ID)

	_, err = svc.Create(ctx, validCreateUser())
	require.NoError(t, err)
	afterCreate, err := svc.List(ctx, models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, afterCreate, 2)
}

func TestSubmissionReferenceChecksBypassCache(t *testing.T) {
	store := seededSubmissionStore()
	users := newTestUserService(store)
	users.cache = newTestCache(nil)
	ctx := context.Background()

	_, err := users.Get(ctx, "u-2")
	require.NoError(t, err)
	delete(store.users, "u-2")

	svc := newTestSubmissionService(store, nil)
	svc.cache = users.cache
	_, err = svc.Create(ctx, dto.SubmissionRequest{UserID: "u-2", TaskID: "t-1"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Zero(t, store.submissionCount())
}
