package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/database"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/metrics"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

// ResultCache stores retrieval results by key. database.Cache implements it.
type ResultCache interface {
	CacheRetrievalResults(ctx context.Context, key string, results interface{}, expiration time.Duration) error
	GetCachedRetrievalResults(ctx context.Context, key string, result interface{}) error
}

// CachedRetriever serves repeated questions from the cache. Cache errors
// are logged and the underlying retriever is used instead.
type CachedRetriever struct {
	next    Retriever
	cache   ResultCache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

func NewCachedRetriever(next Retriever, cache ResultCache, ttl time.Duration, m *metrics.Metrics, logger *logrus.Logger) *CachedRetriever {
	return &CachedRetriever{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
}

func (c *CachedRetriever) Corpora() []models.SourceType {
	return c.next.Corpora()
}

func (c *CachedRetriever) Search(ctx context.Context, query string) ([]models.Source, error) {
	key := CacheKey(query)

	var cached []models.Source
	err := c.cache.GetCachedRetrievalResults(ctx, key, &cached)
	switch {
	case err == nil:
		c.metrics.RetrievalCacheInc(true)
		if cached == nil {
			cached = []models.Source{}
		}
		return cached, nil
	case errors.Is(err, database.ErrCacheMiss):
		c.metrics.RetrievalCacheInc(false)
	default:
		c.metrics.RetrievalCacheInc(false)
		c.logger.WithError(err).Warn("Retrieval cache lookup failed")
	}

	sources, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := c.cache.CacheRetrievalResults(ctx, key, sources, c.ttl); err != nil {
		c.logger.WithError(err).Warn("Failed to cache retrieval results")
	}
	return sources, nil
}

// CacheKey hashes the case- and whitespace-normalized question.
func CacheKey(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	hash := md5.Sum([]byte(normalized))
	return hex.EncodeToString(hash[:])
}
