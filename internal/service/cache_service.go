package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/noah-isme/sigpae-api/internal/models"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
)

const requestListCachePrefix = "requests:list:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService wraps the cache repository with metrics and failure tolerance.
// Cache errors never fail a request; they are logged and reported as misses.
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
		defaultTTL = 2 * time.Minute
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

// Get loads key into dest and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value; a non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
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
}

// InvalidateRequestLists drops every cached request list.
func (s *CacheService) InvalidateRequestLists(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, requestListCachePrefix+"*"); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("prefix", requestListCachePrefix), zap.Error(err))
	}
}

// RequestListKey derives a stable cache key from a list filter and the day it
// was classified on, so priorities roll over at midnight.
func RequestListKey(filter models.RequestFilter, today time.Time) string {
	status := append([]string(nil), filter.Status...)
	sort.Strings(status)
	parts := []string{
		filter.Variant,
		strings.Join(status, ","),
		filter.EscolaID,
		filter.DREID,
		filter.LoteID,
		filter.TerceirizadaID,
		filter.CreatedBy,
		formatOptionalDate(filter.From),
		formatOptionalDate(filter.To),
		formatOptionalDate(filter.FinalBefore),
		fmt.Sprintf("%d/%d", filter.Limit, filter.Offset),
		today.Format("2006-01-02"),
	}
	sum := sha3.Sum256([]byte(strings.Join(parts, "|")))
	return requestListCachePrefix + hex.EncodeToString(sum[:])
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
