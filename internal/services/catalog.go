package services

import (
	"context"
	"errors"

	"moviepicker/internal/types"
)

var (
	// ErrEmptyCatalog means the library returned no movies at all.
	ErrEmptyCatalog = errors.New("no movies found in library")
	// ErrNoMatches means movies exist but none survived the active filters.
	ErrNoMatches = errors.New("no movies match the current filters")
	// ErrUpstreamUnavailable means the Plex server could not be reached or failed.
	ErrUpstreamUnavailable = errors.New("could not reach the Plex server")
	// ErrNotFound means the server does not know the requested item or playlist.
	ErrNotFound = errors.New("not found on Plex server")
)

// Reason codes reported to API callers.
const (
	ReasonEmptyCatalog        = "empty_catalog"
	ReasonEmptyAfterFilter    = "empty_after_filter"
	ReasonUpstreamUnreachable = "upstream_unreachable"
	ReasonNotFound            = "not_found"
	ReasonInternal            = "internal"
)

// ReasonCode classifies err for API responses.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		return ReasonUpstreamUnreachable
	case errors.Is(err, ErrEmptyCatalog):
		return ReasonEmptyCatalog
	case errors.Is(err, ErrNoMatches):
		return ReasonEmptyAfterFilter
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	default:
		return ReasonInternal
	}
}

// CatalogSource is the raw library server.
type CatalogSource interface {
	ListMovies(ctx context.Context) ([]types.MediaItem, error)
	Details(ctx context.Context, key string) (*types.MediaItem, error)
}

// ItemLookup resolves a single movie; nil without error when it does not exist.
type ItemLookup interface {
	Details(ctx context.Context, key string) (*types.MediaItem, error)
}

// LastWatchedLookup finds the most recently watched movie for a user.
type LastWatchedLookup interface {
	LastWatched(ctx context.Context, user *types.User) (*types.MediaItem, error)
}

// CatalogClient is everything the recommender needs from the library.
type CatalogClient interface {
	ItemLookup
	LastWatchedLookup
	ListAll(ctx context.Context) ([]types.MediaItem, error)
}

type PreferenceStore interface {
	Get(ctx context.Context, userID int) (*types.Preferences, error)
	Save(ctx context.Context, prefs *types.Preferences) error
}

type PassedKeys interface {
	ActiveKeys(ctx context.Context, userID int) (map[string]struct{}, error)
}

// LastWatchedItem returns the watched item with the latest view time, or nil.
// Items without a view timestamp never qualify. Ties keep the earliest in order.
func LastWatchedItem(items []types.MediaItem) *types.MediaItem {
	var latest *types.MediaItem
	for i := range items {
		item := &items[i]
		if !item.Watched || item.LastViewedAt == nil {
			continue
		}
		if latest == nil || item.LastViewedAt.After(*latest.LastViewedAt) {
			latest = item
		}
	}
	if latest == nil {
		return nil
	}
	found := *latest
	return &found
}
