package services

import (
	"context"
	"sort"

	"moviepicker/internal/types"
)

// LinkageResolver explains a linked-mode recommendation by naming a person it
// shares with the last watched movie.
type LinkageResolver struct {
	lastWatched LastWatchedLookup
}

func NewLinkageResolver(lastWatched LastWatchedLookup) *LinkageResolver {
	return &LinkageResolver{lastWatched: lastWatched}
}

// Resolve returns nil when the user is not in linked mode, has watched nothing,
// or the chosen movie no longer shares anyone with the last watched one.
func (r *LinkageResolver) Resolve(ctx context.Context, chosen types.MediaItem, user *types.User, prefs *types.Preferences) (*types.Linkage, error) {
	if prefs.FilterMode != types.FilterModeLinked {
		return nil, nil
	}
	last, err := r.lastWatched.LastWatched(ctx, user)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, nil
	}
	return FindLinkage(chosen, *last, prefs.LinkType), nil
}

// FindLinkage returns the alphabetically first name credited on both movies
// for linkType, or nil when they share nobody.
func FindLinkage(chosen, last types.MediaItem, linkType types.LinkType) *types.Linkage {
	if linkType != types.LinkTypeActors && linkType != types.LinkTypeDirectors {
		return nil
	}

	seen := make(map[string]struct{})
	for _, n := range creditsFor(last, linkType) {
		seen[n] = struct{}{}
	}

	var shared []string
	for _, n := range creditsFor(chosen, linkType) {
		if _, ok := seen[n]; ok {
			shared = append(shared, n)
		}
	}
	if len(shared) == 0 {
		return nil
	}

	sort.Strings(shared)
	return &types.Linkage{Type: linkType, Name: shared[0]}
}
