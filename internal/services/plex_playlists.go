package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"moviepicker/internal/types"
)

// Playlist is a handle on a playlist stored on the Plex server.
type Playlist interface {
	ID() string
	Title() string
	Items(ctx context.Context) ([]types.PlaylistEntry, error)
	Add(ctx context.Context, item types.MediaItem) error
	Remove(ctx context.Context, entries ...types.PlaylistEntry) error
}

type plexPlaylist struct {
	client *PlexClient
	id     string
	title  string
}

func (pl *plexPlaylist) ID() string    { return pl.id }
func (pl *plexPlaylist) Title() string { return pl.title }

func (pl *plexPlaylist) Items(ctx context.Context) ([]types.PlaylistEntry, error) {
	var container plexContainer
	err := pl.client.doRequest(ctx, requestConfig{
		method: http.MethodGet,
		path:   "/playlists/" + url.PathEscape(pl.id) + "/items",
	}, &container)
	if err != nil {
		return nil, fmt.Errorf("playlist items: %w", err)
	}

	entries := make([]types.PlaylistEntry, 0, len(container.MediaContainer.Metadata))
	for _, m := range container.MediaContainer.Metadata {
		entries = append(entries, types.PlaylistEntry{
			EntryID: strconv.Itoa(m.PlaylistItemID),
			Item:    m.toMediaItem(),
		})
	}
	return entries, nil
}

func (pl *plexPlaylist) Add(ctx context.Context, item types.MediaItem) error {
	machineID, err := pl.client.ServerIdentity(ctx)
	if err != nil {
		return err
	}
	err = pl.client.doRequest(ctx, requestConfig{
		method: http.MethodPut,
		path:   "/playlists/" + url.PathEscape(pl.id) + "/items",
		query:  url.Values{"uri": {pl.client.libraryURI(machineID, item.Key)}},
	}, nil)
	if err != nil {
		return fmt.Errorf("add %q to playlist: %w", item.Title, err)
	}
	return nil
}

func (pl *plexPlaylist) Remove(ctx context.Context, entries ...types.PlaylistEntry) error {
	for _, entry := range entries {
		err := pl.client.doRequest(ctx, requestConfig{
			method: http.MethodDelete,
			path:   "/playlists/" + url.PathEscape(pl.id) + "/items/" + url.PathEscape(entry.EntryID),
		}, nil)
		if err != nil {
			return fmt.Errorf("remove %q from playlist: %w", entry.Item.Title, err)
		}
	}
	return nil
}

// PlaylistByHandle loads a playlist by id. ErrNotFound when it no longer exists.
func (p *PlexClient) PlaylistByHandle(ctx context.Context, handle string) (Playlist, error) {
	if handle == "" {
		return nil, ErrNotFound
	}
	var container plexContainer
	err := p.doRequest(ctx, requestConfig{
		method: http.MethodGet,
		path:   "/playlists/" + url.PathEscape(handle),
	}, &container)
	if err != nil {
		return nil, fmt.Errorf("load playlist %s: %w", handle, err)
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("load playlist %s: %w", handle, ErrNotFound)
	}
	meta := container.MediaContainer.Metadata[0]
	return &plexPlaylist{client: p, id: meta.RatingKey, title: meta.Title}, nil
}

// CreatePlaylist creates a video playlist. Plex needs at least one item to
// create a playlist, so seed becomes its first entry.
func (p *PlexClient) CreatePlaylist(ctx context.Context, title string, seed types.MediaItem) (Playlist, error) {
	machineID, err := p.ServerIdentity(ctx)
	if err != nil {
		return nil, err
	}

	var container plexContainer
	err = p.doRequest(ctx, requestConfig{
		method: http.MethodPost,
		path:   "/playlists",
		query: url.Values{
			"type":  {"video"},
			"title": {title},
			"smart": {"0"},
			"uri":   {p.libraryURI(machineID, seed.Key)},
		},
	}, &container)
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return nil, errors.New("create playlist: server returned no playlist")
	}
	meta := container.MediaContainer.Metadata[0]
	return &plexPlaylist{client: p, id: meta.RatingKey, title: meta.Title}, nil
}
