package services

import (
	"context"
	"fmt"

	"moviepicker/internal/logging"
	"moviepicker/internal/metrics"
	"moviepicker/internal/types"
)

const movieInfoActorLimit = 5

// MovieInfo is the movie payload shown to the user.
type MovieInfo struct {
	RatingKey     string   `json:"rating_key"`
	Title         string   `json:"title"`
	Year          *int     `json:"year"`
	Rating        float64  `json:"rating"`
	Actors        []string `json:"actors"`
	Directors     []string `json:"directors"`
	Summary       string   `json:"summary"`
	Thumb         string   `json:"thumb"`
	Duration      int      `json:"duration"`
	ContentRating string   `json:"content_rating"`
	Watched       bool     `json:"watched"`
}

func NewMovieInfo(item types.MediaItem) MovieInfo {
	actors := item.Cast
	if len(actors) > movieInfoActorLimit {
		actors = actors[:movieInfoActorLimit]
	}
	if actors == nil {
		actors = []string{}
	}
	directors := item.Directors
	if directors == nil {
		directors = []string{}
	}
	return MovieInfo{
		RatingKey:     item.Key,
		Title:         item.Title,
		Year:          item.Year,
		Rating:        item.Rating,
		Actors:        actors,
		Directors:     directors,
		Summary:       item.Summary,
		Thumb:         item.Thumb,
		Duration:      item.Duration,
		ContentRating: item.ContentRating,
		Watched:       item.Watched,
	}
}

type Recommendation struct {
	Movie    MovieInfo      `json:"movie"`
	LinkedBy *types.Linkage `json:"linked_by"`
}

// Recommender ties the catalog, filters, selection and linkage together.
type Recommender struct {
	catalog  CatalogClient
	prefs    PreferenceStore
	filter   *FilterPipeline
	selector *Selector
	linkage  *LinkageResolver
}

func NewRecommender(catalog CatalogClient, prefs PreferenceStore, passes PassedKeys, selector *Selector) *Recommender {
	return &Recommender{
		catalog:  catalog,
		prefs:    prefs,
		filter:   NewFilterPipeline(passes, catalog),
		selector: selector,
		linkage:  NewLinkageResolver(catalog),
	}
}

// Recommend picks one movie for the user. Errors wrap ErrEmptyCatalog,
// ErrNoMatches or ErrUpstreamUnavailable so callers can tell them apart.
func (r *Recommender) Recommend(ctx context.Context, user *types.User) (*Recommendation, error) {
	rec, err := r.recommend(ctx, user)
	metrics.Recommendations.WithLabelValues(recommendOutcome(err)).Inc()
	return rec, err
}

func (r *Recommender) recommend(ctx context.Context, user *types.User) (*Recommendation, error) {
	prefs, err := r.prefs.Get(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	items, err := r.catalog.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}

	filtered, err := r.filter.Filter(ctx, items, user, prefs)
	if err != nil {
		return nil, err
	}

	chosen, ok := r.selector.Select(filtered)
	if !ok {
		return nil, ErrNoMatches
	}

	rec := &Recommendation{Movie: NewMovieInfo(chosen)}
	if prefs.FilterMode == types.FilterModeLinked {
		linkage, err := r.linkage.Resolve(ctx, chosen, user, prefs)
		if err != nil {
			// Attribution only; the recommendation stands without it.
			logging.Ctx(ctx).Warn().Err(err).Str("rating_key", chosen.Key).Msg("Could not resolve linkage")
		}
		rec.LinkedBy = linkage
	}

	logging.Ctx(ctx).Info().
		Int("user_id", user.ID).
		Str("rating_key", chosen.Key).
		Str("title", chosen.Title).
		Int("candidates", len(filtered)).
		Msg("Recommended movie")
	return rec, nil
}

// LastWatched exposes the last watched movie for display.
func (r *Recommender) LastWatched(ctx context.Context, user *types.User) (*MovieInfo, error) {
	item, err := r.catalog.LastWatched(ctx, user)
	if err != nil || item == nil {
		return nil, err
	}
	info := NewMovieInfo(*item)
	return &info, nil
}

func recommendOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return ReasonCode(err)
}
