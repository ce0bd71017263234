package services

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"moviepicker/internal/logging"
	"moviepicker/internal/metrics"
	"moviepicker/internal/types"
)

const (
	moviesCacheKey     = "movies"
	catalogLoadTimeout = 30 * time.Second
)

// LibraryCatalog is the CatalogClient used by the recommender. It keeps a
// short-lived snapshot of the movie list and of item details so that one
// recommendation does not list the library more than once.
type LibraryCatalog struct {
	source CatalogSource
	cache  *cache.Cache
	group  singleflight.Group
}

func NewLibraryCatalog(source CatalogSource, ttl time.Duration) *LibraryCatalog {
	return &LibraryCatalog{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// ListAll returns the cached movie list, fetching it once when stale.
// Callers must not modify the returned slice.
func (c *LibraryCatalog) ListAll(ctx context.Context) ([]types.MediaItem, error) {
	if cached, ok := c.cache.Get(moviesCacheKey); ok {
		metrics.CatalogCacheHits.Inc()
		return cached.([]types.MediaItem), nil
	}
	metrics.CatalogCacheMisses.Inc()

	v, err, _ := c.group.Do(moviesCacheKey, func() (any, error) {
		// Shared by every waiting caller, so one caller's cancellation must not end it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catalogLoadTimeout)
		defer cancel()
		items, err := c.source.ListMovies(loadCtx)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(moviesCacheKey, items)
		logging.Debug().Int("movies", len(items)).Msg("Refreshed catalog snapshot")
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.MediaItem), nil
}

// Details returns metadata for one movie; nil when the server does not have it.
func (c *LibraryCatalog) Details(ctx context.Context, key string) (*types.MediaItem, error) {
	cacheKey := "details:" + key
	if cached, ok := c.cache.Get(cacheKey); ok {
		metrics.CatalogCacheHits.Inc()
		item := cached.(types.MediaItem)
		return &item, nil
	}
	metrics.CatalogCacheMisses.Inc()

	item, err := c.source.Details(ctx, key)
	if err != nil || item == nil {
		return item, err
	}
	c.cache.SetDefault(cacheKey, *item)
	return item, nil
}

// LastWatched finds the most recently watched movie and loads its full credits,
// since list responses carry only the first few cast members.
func (c *LibraryCatalog) LastWatched(ctx context.Context, user *types.User) (*types.MediaItem, error) {
	items, err := c.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	latest := LastWatchedItem(items)
	if latest == nil {
		return nil, nil
	}

	full, err := c.Details(ctx, latest.Key)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("rating_key", latest.Key).Msg("Falling back to list credits for last watched movie")
		return latest, nil
	}
	if full == nil {
		return latest, nil
	}
	// Details may lag behind the list's view state; keep the list's.
	full.Watched = latest.Watched
	full.LastViewedAt = latest.LastViewedAt
	return full, nil
}

// Invalidate drops the cached snapshot so the next call reads the server.
func (c *LibraryCatalog) Invalidate() {
	c.cache.Flush()
}
