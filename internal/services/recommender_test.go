package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviepicker/internal/types"
)

func newTestRecommender(catalog *fakeCatalog, prefs *memoryPrefs, passes stubPasses) *Recommender {
	return NewRecommender(catalog, prefs, passes, NewSeededSelector(rand.New(rand.NewPCG(7, 7))))
}

func TestRecommendLinkedMode(t *testing.T) {
	now := time.Now()
	catalog := &fakeCatalog{items: []types.MediaItem{
		movie("seen", cast("Al Pacino", "Robert De Niro"), watchedAt(now)),
		movie("heat", rated(8.3), cast("Robert De Niro", "Val Kilmer")),
		movie("other", rated(9.1), cast("Somebody")),
	}}
	prefs := newMemoryPrefs()

	rec, err := newTestRecommender(catalog, prefs, stubPasses{}).Recommend(context.Background(), testUser)
	require.NoError(t, err)

	assert.Equal(t, "heat", rec.Movie.RatingKey)
	require.NotNil(t, rec.LinkedBy)
	assert.Equal(t, "Robert De Niro", rec.LinkedBy.Name)
	assert.Equal(t, types.LinkTypeActors, rec.LinkedBy.Type)
}

func TestRecommendSearchModeHasNoLinkage(t *testing.T) {
	catalog := &fakeCatalog{items: []types.MediaItem{movie("1", year(1994), rated(7))}}
	prefs := newMemoryPrefs()
	p, _ := prefs.Get(context.Background(), testUser.ID)
	p.FilterMode = types.FilterModeSearch
	p.FilterDecade = "1990s"
	require.NoError(t, prefs.Save(context.Background(), p))

	rec, err := newTestRecommender(catalog, prefs, stubPasses{}).Recommend(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, "1", rec.Movie.RatingKey)
	assert.Nil(t, rec.LinkedBy)
}

func TestRecommendErrors(t *testing.T) {
	tests := []struct {
		name       string
		catalog    *fakeCatalog
		passes     stubPasses
		wantErr    error
		wantReason string
	}{
		{
			name:       "empty catalog",
			catalog:    &fakeCatalog{},
			wantErr:    ErrEmptyCatalog,
			wantReason: ReasonEmptyCatalog,
		},
		{
			name:       "everything passed",
			catalog:    &fakeCatalog{items: []types.MediaItem{movie("1"), movie("2")}},
			passes:     stubPasses{"1": {}, "2": {}},
			wantErr:    ErrNoMatches,
			wantReason: ReasonEmptyAfterFilter,
		},
		{
			name:       "server down",
			catalog:    &fakeCatalog{err: fmt.Errorf("list movies: %w", ErrUpstreamUnavailable)},
			wantErr:    ErrUpstreamUnavailable,
			wantReason: ReasonUpstreamUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := newTestRecommender(tt.catalog, newMemoryPrefs(), tt.passes).Recommend(context.Background(), testUser)
			assert.Nil(t, rec)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantReason, ReasonCode(err))
		})
	}
}

func TestNewMovieInfoLimitsActors(t *testing.T) {
	info := NewMovieInfo(movie("1", cast("a", "b", "c", "d", "e", "f", "g")))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, info.Actors)
	assert.Equal(t, []string{}, info.Directors)
}

func TestRecommenderLastWatched(t *testing.T) {
	catalog := &fakeCatalog{items: []types.MediaItem{movie("1"), movie("2", watchedAt(time.Now()))}}
	info, err := newTestRecommender(catalog, newMemoryPrefs(), stubPasses{}).LastWatched(context.Background(), testUser)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "2", info.RatingKey)

	empty := &fakeCatalog{items: []types.MediaItem{movie("1")}}
	info, err = newTestRecommender(empty, newMemoryPrefs(), stubPasses{}).LastWatched(context.Background(), testUser)
	require.NoError(t, err)
	assert.Nil(t, info)
}
