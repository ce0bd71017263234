package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviepicker/internal/types"
)

type memoryPlaylist struct {
	id      string
	title   string
	entries []types.PlaylistEntry
	nextID  int
	removed int
}

func (p *memoryPlaylist) ID() string    { return p.id }
func (p *memoryPlaylist) Title() string { return p.title }

func (p *memoryPlaylist) Items(ctx context.Context) ([]types.PlaylistEntry, error) {
	return append([]types.PlaylistEntry(nil), p.entries...), nil
}

func (p *memoryPlaylist) Add(ctx context.Context, item types.MediaItem) error {
	p.nextID++
	p.entries = append(p.entries, types.PlaylistEntry{EntryID: fmt.Sprint(p.nextID), Item: item})
	return nil
}

func (p *memoryPlaylist) Remove(ctx context.Context, entries ...types.PlaylistEntry) error {
	drop := map[string]bool{}
	for _, e := range entries {
		drop[e.EntryID] = true
	}
	var kept []types.PlaylistEntry
	for _, e := range p.entries {
		if !drop[e.EntryID] {
			kept = append(kept, e)
		}
	}
	p.removed += len(p.entries) - len(kept)
	p.entries = kept
	return nil
}

type memoryLibrary struct {
	playlists map[string]*memoryPlaylist
	created   int
}

func newMemoryLibrary() *memoryLibrary {
	return &memoryLibrary{playlists: map[string]*memoryPlaylist{}}
}

func (l *memoryLibrary) PlaylistByHandle(ctx context.Context, handle string) (Playlist, error) {
	pl, ok := l.playlists[handle]
	if !ok {
		return nil, ErrNotFound
	}
	return pl, nil
}

func (l *memoryLibrary) CreatePlaylist(ctx context.Context, title string, seed types.MediaItem) (Playlist, error) {
	l.created++
	pl := &memoryPlaylist{id: fmt.Sprintf("pl-%d", l.created), title: title}
	_ = pl.Add(ctx, seed)
	l.playlists[pl.id] = pl
	return pl, nil
}

func TestGetOrCreatePlaylistReusesStoredHandle(t *testing.T) {
	library := newMemoryLibrary()
	prefs := newMemoryPrefs()
	svc := NewPlaylistService(library, heatCatalog, prefs, "Movie Picker")

	first, created, err := svc.GetOrCreatePlaylist(context.Background(), testUser, movie("100"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.GetOrCreatePlaylist(context.Background(), testUser, movie("100"))
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 1, library.created)

	stored, _ := prefs.Get(context.Background(), testUser.ID)
	assert.Equal(t, first.ID(), stored.PlaylistID)
}

func TestGetOrCreatePlaylistReplacesDeletedPlaylist(t *testing.T) {
	library := newMemoryLibrary()
	prefs := newMemoryPrefs()
	require.NoError(t, prefs.SavePlaylistID(context.Background(), testUser.ID, "gone"))
	svc := NewPlaylistService(library, heatCatalog, prefs, "Movie Picker")

	pl, created, err := svc.GetOrCreatePlaylist(context.Background(), testUser, movie("100"))
	require.NoError(t, err)
	assert.True(t, created)

	stored, _ := prefs.Get(context.Background(), testUser.ID)
	assert.Equal(t, pl.ID(), stored.PlaylistID)
}

func TestAddToPlaylist(t *testing.T) {
	catalog := &fakeCatalog{items: []types.MediaItem{
		{Key: "100", Title: "Heat"},
		{Key: "200", Title: "Ronin"},
	}}
	library := newMemoryLibrary()
	svc := NewPlaylistService(library, catalog, newMemoryPrefs(), "Movie Picker")
	ctx := context.Background()

	res, err := svc.AddToPlaylist(ctx, testUser, "100")
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.Equal(t, "Added Heat to playlist", res.Message)

	res, err = svc.AddToPlaylist(ctx, testUser, "100")
	require.NoError(t, err)
	assert.False(t, res.Added)
	assert.True(t, res.AlreadyPresent)
	assert.Equal(t, "Heat is already in your playlist", res.Message)

	res, err = svc.AddToPlaylist(ctx, testUser, "200")
	require.NoError(t, err)
	assert.True(t, res.Added)

	pl := library.playlists[res.PlaylistID]
	entries, _ := pl.Items(ctx)
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, library.created)
}

func TestAddToPlaylistRemovesWatched(t *testing.T) {
	catalog := &fakeCatalog{items: []types.MediaItem{{Key: "300", Title: "Thief"}}}
	library := newMemoryLibrary()
	library.playlists["pl-x"] = &memoryPlaylist{id: "pl-x", entries: []types.PlaylistEntry{
		{EntryID: "a", Item: types.MediaItem{Key: "1", Watched: true}},
		{EntryID: "b", Item: types.MediaItem{Key: "2"}},
		{EntryID: "c", Item: types.MediaItem{Key: "3", Watched: true}},
	}, nextID: 10}
	prefs := newMemoryPrefs()
	require.NoError(t, prefs.SavePlaylistID(context.Background(), testUser.ID, "pl-x"))
	svc := NewPlaylistService(library, catalog, prefs, "Movie Picker")

	res, err := svc.AddToPlaylist(context.Background(), testUser, "300")
	require.NoError(t, err)

	assert.True(t, res.Added)
	assert.Equal(t, 2, res.RemovedWatched)
	assert.Equal(t, "Added Thief to playlist (removed 2 watched)", res.Message)

	var remaining []string
	for _, e := range library.playlists["pl-x"].entries {
		remaining = append(remaining, e.Item.Key)
	}
	assert.Equal(t, []string{"2", "300"}, remaining)
}

func TestAddToPlaylistUnknownMovie(t *testing.T) {
	svc := NewPlaylistService(newMemoryLibrary(), &fakeCatalog{}, newMemoryPrefs(), "Movie Picker")

	_, err := svc.AddToPlaylist(context.Background(), testUser, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanupWatched(t *testing.T) {
	library := newMemoryLibrary()
	library.playlists["pl-x"] = &memoryPlaylist{id: "pl-x", entries: []types.PlaylistEntry{
		{EntryID: "a", Item: types.MediaItem{Key: "1", Watched: true}},
		{EntryID: "b", Item: types.MediaItem{Key: "2"}},
	}}
	prefs := newMemoryPrefs()
	svc := NewPlaylistService(library, heatCatalog, prefs, "Movie Picker")

	removed, err := svc.CleanupWatched(context.Background(), testUser)
	require.NoError(t, err)
	assert.Zero(t, removed, "no stored playlist")

	require.NoError(t, prefs.SavePlaylistID(context.Background(), testUser.ID, "pl-x"))
	removed, err = svc.CleanupWatched(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, prefs.SavePlaylistID(context.Background(), testUser.ID, "deleted"))
	removed, err = svc.CleanupWatched(context.Background(), testUser)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
