package services

import (
	"context"
	"time"

	"moviepicker/internal/types"
)

type movieOpt func(*types.MediaItem)

func movie(key string, opts ...movieOpt) types.MediaItem {
	m := types.MediaItem{Key: key, Title: "Movie " + key}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func year(y int) movieOpt { return func(m *types.MediaItem) { m.Year = &y } }
func rated(r float64) movieOpt { return func(m *types.MediaItem) { m.Rating = r } }
func cast(names ...string) movieOpt { return func(m *types.MediaItem) { m.Cast = names } }
func directed(names ...string) movieOpt {
	return func(m *types.MediaItem) { m.Directors = names }
}

func watchedAt(t time.Time) movieOpt {
	return func(m *types.MediaItem) {
		m.Watched = true
		m.LastViewedAt = &t
	}
}

func keys(items []types.MediaItem) []string {
	out := make([]string, 0, len(items))
	for _, m := range items {
		out = append(out, m.Key)
	}
	return out
}

type stubPasses map[string]struct{}

func (s stubPasses) ActiveKeys(ctx context.Context, userID int) (map[string]struct{}, error) {
	return s, nil
}

type stubLastWatched struct {
	item  *types.MediaItem
	err   error
	calls int
}

func (s *stubLastWatched) LastWatched(ctx context.Context, user *types.User) (*types.MediaItem, error) {
	s.calls++
	return s.item, s.err
}

// fakeCatalog serves a fixed movie list.
type fakeCatalog struct {
	items   []types.MediaItem
	err     error
	details map[string]types.MediaItem
}

func (f *fakeCatalog) ListAll(ctx context.Context) ([]types.MediaItem, error) {
	return f.items, f.err
}

func (f *fakeCatalog) ListMovies(ctx context.Context) ([]types.MediaItem, error) {
	return f.items, f.err
}

func (f *fakeCatalog) Details(ctx context.Context, key string) (*types.MediaItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	if m, ok := f.details[key]; ok {
		return &m, nil
	}
	for _, m := range f.items {
		if m.Key == key {
			found := m
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) LastWatched(ctx context.Context, user *types.User) (*types.MediaItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return LastWatchedItem(f.items), nil
}

type memoryPrefs struct {
	prefs map[int]*types.Preferences
}

func newMemoryPrefs() *memoryPrefs {
	return &memoryPrefs{prefs: map[int]*types.Preferences{}}
}

func (m *memoryPrefs) Get(ctx context.Context, userID int) (*types.Preferences, error) {
	p, ok := m.prefs[userID]
	if !ok {
		d := types.DefaultPreferences(userID)
		p = &d
		m.prefs[userID] = p
	}
	cp := *p
	return &cp, nil
}

func (m *memoryPrefs) Save(ctx context.Context, prefs *types.Preferences) error {
	cp := *prefs
	m.prefs[prefs.UserID] = &cp
	return nil
}

func (m *memoryPrefs) SavePlaylistID(ctx context.Context, userID int, playlistID string) error {
	p, _ := m.Get(ctx, userID)
	p.PlaylistID = playlistID
	return m.Save(ctx, p)
}
