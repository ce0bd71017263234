package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviepicker/internal/types"
)

func TestFindLinkage(t *testing.T) {
	last := movie("last", cast("Zoe Saldana", "Chris Pratt", "Bradley Cooper"), directed("James Gunn"))

	tests := []struct {
		name     string
		chosen   types.MediaItem
		linkType types.LinkType
		want     *types.Linkage
	}{
		{
			name:     "single shared actor",
			chosen:   movie("1", cast("Chris Pratt")),
			linkType: types.LinkTypeActors,
			want:     &types.Linkage{Type: types.LinkTypeActors, Name: "Chris Pratt"},
		},
		{
			name:     "ties pick alphabetically first",
			chosen:   movie("2", cast("Zoe Saldana", "Bradley Cooper", "Chris Pratt")),
			linkType: types.LinkTypeActors,
			want:     &types.Linkage{Type: types.LinkTypeActors, Name: "Bradley Cooper"},
		},
		{
			name:     "director",
			chosen:   movie("3", directed("James Gunn")),
			linkType: types.LinkTypeDirectors,
			want:     &types.Linkage{Type: types.LinkTypeDirectors, Name: "James Gunn"},
		},
		{
			name:     "no overlap",
			chosen:   movie("4", cast("Keanu Reeves")),
			linkType: types.LinkTypeActors,
			want:     nil,
		},
		{
			name:     "actor overlap does not count for directors",
			chosen:   movie("5", cast("Chris Pratt"), directed("Someone Else")),
			linkType: types.LinkTypeDirectors,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindLinkage(tt.chosen, last, tt.linkType))
		})
	}
}

func TestFindLinkageIsStable(t *testing.T) {
	last := movie("last", cast("A", "B", "C"))
	chosen := movie("1", cast("C", "B", "A"))

	first := FindLinkage(chosen, last, types.LinkTypeActors)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, FindLinkage(chosen, last, types.LinkTypeActors))
	}
}

func TestLinkageResolver(t *testing.T) {
	last := movie("last", cast("A"))
	chosen := movie("1", cast("A"))

	t.Run("search mode skips lookup", func(t *testing.T) {
		lookup := &stubLastWatched{item: &last}
		prefs := types.DefaultPreferences(1)
		prefs.FilterMode = types.FilterModeSearch

		got, err := NewLinkageResolver(lookup).Resolve(context.Background(), chosen, testUser, &prefs)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Zero(t, lookup.calls)
	})

	t.Run("nothing watched", func(t *testing.T) {
		prefs := types.DefaultPreferences(1)
		got, err := NewLinkageResolver(&stubLastWatched{}).Resolve(context.Background(), chosen, testUser, &prefs)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("linked", func(t *testing.T) {
		prefs := types.DefaultPreferences(1)
		got, err := NewLinkageResolver(&stubLastWatched{item: &last}).Resolve(context.Background(), chosen, testUser, &prefs)
		require.NoError(t, err)
		assert.Equal(t, &types.Linkage{Type: types.LinkTypeActors, Name: "A"}, got)
	})
}
