package services

import (
	"context"
	"fmt"
	"strings"

	"moviepicker/internal/logging"
	"moviepicker/internal/types"
)

// FilterPipeline narrows the catalog to the movies a user may be offered.
// The watched and passed exclusions always run first; then either the linked
// or the search stage runs, depending on the user's filter mode.
type FilterPipeline struct {
	passes      PassedKeys
	lastWatched LastWatchedLookup
}

func NewFilterPipeline(passes PassedKeys, lastWatched LastWatchedLookup) *FilterPipeline {
	return &FilterPipeline{
		passes:      passes,
		lastWatched: lastWatched,
	}
}

// Filter returns the surviving items in catalog order. An empty result is not an error.
func (f *FilterPipeline) Filter(ctx context.Context, items []types.MediaItem, user *types.User, prefs *types.Preferences) ([]types.MediaItem, error) {
	filtered := items
	if prefs.ExcludeWatched {
		filtered = ExcludeWatched(filtered)
	}

	passed, err := f.passes.ActiveKeys(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load passed movies: %w", err)
	}
	filtered = ExcludeKeys(filtered, passed)

	switch prefs.FilterMode {
	case types.FilterModeLinked:
		filtered, err = f.applyLinked(ctx, filtered, user, prefs.LinkType)
		if err != nil {
			return nil, err
		}
	case types.FilterModeSearch:
		filtered = MatchDecade(filtered, prefs.FilterDecade)
		filtered = MatchActor(filtered, prefs.FilterActor)
	}

	logging.Ctx(ctx).Debug().
		Int("catalog", len(items)).
		Int("passed", len(passed)).
		Int("remaining", len(filtered)).
		Str("mode", string(prefs.FilterMode)).
		Msg("Filtered catalog")
	return filtered, nil
}

func (f *FilterPipeline) applyLinked(ctx context.Context, items []types.MediaItem, user *types.User, linkType types.LinkType) ([]types.MediaItem, error) {
	if linkType != types.LinkTypeActors && linkType != types.LinkTypeDirectors {
		return items, nil
	}
	last, err := f.lastWatched.LastWatched(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load last watched movie: %w", err)
	}
	if last == nil {
		return items, nil
	}
	return SharesCredit(items, creditsFor(*last, linkType), linkType), nil
}

func creditsFor(item types.MediaItem, linkType types.LinkType) []string {
	if linkType == types.LinkTypeDirectors {
		return item.Directors
	}
	return item.Cast
}

// ExcludeWatched drops every watched item.
func ExcludeWatched(items []types.MediaItem) []types.MediaItem {
	return keep(items, func(m types.MediaItem) bool { return !m.Watched })
}

// ExcludeKeys drops items whose key is in keys.
func ExcludeKeys(items []types.MediaItem, keys map[string]struct{}) []types.MediaItem {
	if len(keys) == 0 {
		return items
	}
	return keep(items, func(m types.MediaItem) bool {
		_, skip := keys[m.Key]
		return !skip
	})
}

// SharesCredit keeps items credited with at least one of names. An empty
// names list leaves items untouched rather than filtering everything out.
func SharesCredit(items []types.MediaItem, names []string, linkType types.LinkType) []types.MediaItem {
	if len(names) == 0 {
		return items
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	return keep(items, func(m types.MediaItem) bool {
		for _, n := range creditsFor(m, linkType) {
			if _, ok := wanted[n]; ok {
				return true
			}
		}
		return false
	})
}

// MatchDecade keeps items released in decade ("1990s"). Items without a year
// never match. An empty decade is a no-op.
func MatchDecade(items []types.MediaItem, decade string) []types.MediaItem {
	if decade == "" {
		return items
	}
	return keep(items, func(m types.MediaItem) bool { return m.Decade() == decade })
}

// MatchActor keeps items with a cast member whose name contains actor,
// ignoring case. An empty filter is a no-op.
func MatchActor(items []types.MediaItem, actor string) []types.MediaItem {
	needle := strings.ToLower(strings.TrimSpace(actor))
	if needle == "" {
		return items
	}
	return keep(items, func(m types.MediaItem) bool {
		for _, name := range m.Cast {
			if strings.Contains(strings.ToLower(name), needle) {
				return true
			}
		}
		return false
	})
}

func keep(items []types.MediaItem, pred func(types.MediaItem) bool) []types.MediaItem {
	out := make([]types.MediaItem, 0, len(items))
	for _, m := range items {
		if pred(m) {
			out = append(out, m)
		}
	}
	return out
}
