package services

import (
	"context"
	"errors"
	"fmt"

	"moviepicker/internal/logging"
	"moviepicker/internal/types"
)

// PlaylistLibrary finds and creates playlists on the server.
type PlaylistLibrary interface {
	PlaylistByHandle(ctx context.Context, handle string) (Playlist, error)
	CreatePlaylist(ctx context.Context, title string, seed types.MediaItem) (Playlist, error)
}

// PlaylistPreferences reads and stores the user's playlist handle.
type PlaylistPreferences interface {
	Get(ctx context.Context, userID int) (*types.Preferences, error)
	SavePlaylistID(ctx context.Context, userID int, playlistID string) error
}

// PlaylistService maintains one "watch later" playlist per user.
type PlaylistService struct {
	library PlaylistLibrary
	items   ItemLookup
	prefs   PlaylistPreferences
	name    string
}

func NewPlaylistService(library PlaylistLibrary, items ItemLookup, prefs PlaylistPreferences, name string) *PlaylistService {
	return &PlaylistService{
		library: library,
		items:   items,
		prefs:   prefs,
		name:    name,
	}
}

// GetOrCreatePlaylist returns the user's stored playlist, or creates one seeded
// with seed and stores its handle. created reports which happened.
func (s *PlaylistService) GetOrCreatePlaylist(ctx context.Context, user *types.User, seed types.MediaItem) (pl Playlist, created bool, err error) {
	prefs, err := s.prefs.Get(ctx, user.ID)
	if err != nil {
		return nil, false, fmt.Errorf("load preferences: %w", err)
	}

	if prefs.PlaylistID != "" {
		existing, lookupErr := s.library.PlaylistByHandle(ctx, prefs.PlaylistID)
		if lookupErr == nil {
			return existing, false, nil
		}
		logging.Ctx(ctx).Warn().Err(lookupErr).Str("playlist_id", prefs.PlaylistID).Msg("Stored playlist unavailable, creating a new one")
	}

	pl, err = s.library.CreatePlaylist(ctx, s.name, seed)
	if err != nil {
		return nil, false, err
	}
	if err := s.prefs.SavePlaylistID(ctx, user.ID, pl.ID()); err != nil {
		return nil, false, fmt.Errorf("store playlist id: %w", err)
	}
	logging.Ctx(ctx).Info().Int("user_id", user.ID).Str("playlist_id", pl.ID()).Msg("Created playlist")
	return pl, true, nil
}

// AddToPlaylist appends the movie unless it is already queued, then clears
// watched movies out of the playlist.
func (s *PlaylistService) AddToPlaylist(ctx context.Context, user *types.User, itemKey string) (*types.PlaylistAddResult, error) {
	item, err := s.items.Details(ctx, itemKey)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("movie %s: %w", itemKey, ErrNotFound)
	}

	pl, created, err := s.GetOrCreatePlaylist(ctx, user, *item)
	if err != nil {
		return nil, err
	}

	result := &types.PlaylistAddResult{PlaylistID: pl.ID()}
	if created {
		result.Added = true
	} else {
		entries, err := pl.Items(ctx)
		if err != nil {
			return nil, err
		}
		if containsItem(entries, item.Key) {
			result.AlreadyPresent = true
		} else {
			if err := pl.Add(ctx, *item); err != nil {
				return nil, err
			}
			result.Added = true
		}
	}

	removed, err := s.cleanupPlaylist(ctx, pl)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("playlist_id", pl.ID()).Msg("Could not clean watched movies from playlist")
	}
	result.RemovedWatched = removed
	result.Message = addMessage(item.Title, result)
	return result, nil
}

// CleanupWatched removes watched movies from the user's stored playlist and
// returns how many were removed. A user without a playlist has nothing to clean.
func (s *PlaylistService) CleanupWatched(ctx context.Context, user *types.User) (int, error) {
	prefs, err := s.prefs.Get(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("load preferences: %w", err)
	}
	if prefs.PlaylistID == "" {
		return 0, nil
	}
	pl, err := s.library.PlaylistByHandle(ctx, prefs.PlaylistID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.cleanupPlaylist(ctx, pl)
}

func (s *PlaylistService) cleanupPlaylist(ctx context.Context, pl Playlist) (int, error) {
	entries, err := pl.Items(ctx)
	if err != nil {
		return 0, err
	}
	var watched []types.PlaylistEntry
	for _, e := range entries {
		if e.Item.Watched {
			watched = append(watched, e)
		}
	}
	if len(watched) == 0 {
		return 0, nil
	}
	if err := pl.Remove(ctx, watched...); err != nil {
		return 0, err
	}
	return len(watched), nil
}

func containsItem(entries []types.PlaylistEntry, key string) bool {
	for _, e := range entries {
		if e.Item.Key == key {
			return true
		}
	}
	return false
}

func addMessage(title string, r *types.PlaylistAddResult) string {
	msg := fmt.Sprintf("Added %s to playlist", title)
	if r.AlreadyPresent {
		msg = fmt.Sprintf("%s is already in your playlist", title)
	}
	if r.RemovedWatched > 0 {
		msg += fmt.Sprintf(" (removed %d watched)", r.RemovedWatched)
	}
	return msg
}
