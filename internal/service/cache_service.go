package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
)

const requiredVersionsKeyPrefix = "required-versions:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// RequiredVersionsKey is the cache key of the required versions of a scope.
func RequiredVersionsKey(scopeID string) string {
	return requiredVersionsKeyPrefix + scopeID
}

// InvalidateRequiredVersions drops every cached required-versions list. Called
// whenever a sync appends a version or an administrator edits a document.
func (s *CacheService) InvalidateRequiredVersions(ctx context.Context) error {
	return s.Invalidate(ctx, requiredVersionsKeyPrefix+"*")
}

// RequiredVersionLister lists the current required versions of a scope as of at.
type RequiredVersionLister interface {
	ListRequired(ctx context.Context, scopeID string, at time.Time) ([]models.RequiredVersion, error)
}

// CachedRequiredVersions serves required-version lists from the cache and
// falls back to the underlying lister on a miss or cache failure.
type CachedRequiredVersions struct {
	next  RequiredVersionLister
	cache *CacheService
	ttl   time.Duration
}

// NewCachedRequiredVersions wraps next with cache. A nil or disabled cache passes every call through.
func NewCachedRequiredVersions(next RequiredVersionLister, cache *CacheService, ttl time.Duration) *CachedRequiredVersions {
	return &CachedRequiredVersions{next: next, cache: cache, ttl: ttl}
}

// ListRequired implements RequiredVersionLister. Cached entries are dropped on
// every sync that appends a version, so a hit is valid for any at after it was stored.
func (c *CachedRequiredVersions) ListRequired(ctx context.Context, scopeID string, at time.Time) ([]models.RequiredVersion, error) {
	key := RequiredVersionsKey(scopeID)
	var cached []models.RequiredVersion
	if hit, _ := c.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	versions, err := c.next.ListRequired(ctx, scopeID, at)
	if err != nil {
		return nil, err
	}
	if versions == nil {
		versions = []models.RequiredVersion{}
	}
	_ = c.cache.Set(ctx, key, versions, c.ttl)
	return versions, nil
}
