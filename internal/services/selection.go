package services

import (
	"math/rand/v2"

	"moviepicker/internal/types"
)

// Selector picks one movie from the filtered candidates.
type Selector struct {
	intn func(n int) int
}

// NewSelector uses the process-wide random source.
func NewSelector() *Selector {
	return &Selector{intn: rand.IntN}
}

// NewSeededSelector uses r for every draw. r must not be shared across goroutines.
func NewSeededSelector(r *rand.Rand) *Selector {
	return &Selector{intn: r.IntN}
}

// GroupByRating buckets items by truncated rating; unrated items land in tier 0.
func GroupByRating(items []types.MediaItem) map[int][]types.MediaItem {
	groups := make(map[int][]types.MediaItem)
	for _, item := range items {
		tier := item.RatingTier()
		groups[tier] = append(groups[tier], item)
	}
	return groups
}

// SelectionPool returns the highest rated tier followed by every unrated item.
// Unrated movies stay eligible so new additions without ratings still surface.
func SelectionPool(items []types.MediaItem) []types.MediaItem {
	groups := GroupByRating(items)

	top := 0
	for tier := range groups {
		if tier > top {
			top = tier
		}
	}
	if top == 0 {
		return groups[0]
	}

	pool := make([]types.MediaItem, 0, len(groups[top])+len(groups[0]))
	pool = append(pool, groups[top]...)
	return append(pool, groups[0]...)
}

// Select draws uniformly from the selection pool. ok is false when there is nothing to pick.
func (s *Selector) Select(items []types.MediaItem) (types.MediaItem, bool) {
	pool := SelectionPool(items)
	if len(pool) == 0 {
		return types.MediaItem{}, false
	}
	return pool[s.intn(len(pool))], true
}
