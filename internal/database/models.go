package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moviepicker/internal/types"
)

// ErrNotFound is returned when a record does not exist for the requesting user.
var ErrNotFound = errors.New("record not found")

// GetOrCreateUser finds a user by authentication subject or creates one.
// The identity provider is the source of truth for email and name.
func GetOrCreateUser(ctx context.Context, db *sql.DB, subject, email, name string) (*types.User, error) {
	now := time.Now().UTC().Truncate(time.Second)

	var user types.User
	err := db.QueryRowContext(ctx, `
		SELECT id, subject, email, name, created_at
		FROM users
		WHERE subject = ?
	`, subject).Scan(&user.ID, &user.Subject, &user.Email, &user.Name, &user.Created)

	if err == nil {
		user.Email = email
		user.Name = name
		if _, err := db.ExecContext(ctx, `
			UPDATE users SET email = ?, name = ?, last_login = ? WHERE id = ?
		`, user.Email, user.Name, now, user.ID); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		user.LastLogin = &now
		return &user, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO users (subject, email, name, created_at, last_login)
		VALUES (?, ?, ?, ?, ?)
	`, subject, email, name, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	userID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	return &types.User{
		ID:        int(userID),
		Subject:   subject,
		Email:     email,
		Name:      name,
		Created:   now,
		LastLogin: &now,
	}, nil
}

// PreferenceStore persists the per-user preferences singleton.
type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// Get returns the user's preferences, creating the defaults on first access.
func (s *PreferenceStore) Get(ctx context.Context, userID int) (*types.Preferences, error) {
	var prefs types.Preferences
	var filterMode, linkType string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, exclude_watched, filter_mode, link_type, filter_decade, filter_actor,
		       playlist_id, selected_client_name, selected_client_identifier,
		       exclude_same_actors, exclude_same_director, created_at, updated_at
		FROM user_preferences
		WHERE user_id = ?
	`, userID).Scan(
		&prefs.ID, &prefs.UserID, &prefs.ExcludeWatched, &filterMode, &linkType,
		&prefs.FilterDecade, &prefs.FilterActor, &prefs.PlaylistID,
		&prefs.SelectedClientName, &prefs.SelectedClientIdentifier,
		&prefs.ExcludeSameActors, &prefs.ExcludeSameDirector, &prefs.Created, &prefs.Updated,
	)

	if err == nil {
		prefs.FilterMode = types.FilterMode(filterMode)
		prefs.LinkType = types.LinkType(linkType)
		return &prefs, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query user preferences: %w", err)
	}

	prefs = types.DefaultPreferences(userID)
	now := time.Now().UTC().Truncate(time.Second)
	prefs.Created = now
	prefs.Updated = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, exclude_watched, filter_mode, link_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, prefs.ExcludeWatched, string(prefs.FilterMode), string(prefs.LinkType), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user preferences: %w", err)
	}

	prefsID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences ID: %w", err)
	}
	prefs.ID = int(prefsID)

	return &prefs, nil
}

// Save writes every preference field. Concurrent saves for one user are last-writer-wins.
func (s *PreferenceStore) Save(ctx context.Context, prefs *types.Preferences) error {
	prefs.Updated = time.Now().UTC().Truncate(time.Second)
	if prefs.Created.IsZero() {
		prefs.Created = prefs.Updated
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (
			user_id, exclude_watched, filter_mode, link_type, filter_decade, filter_actor,
			playlist_id, selected_client_name, selected_client_identifier,
			exclude_same_actors, exclude_same_director, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			exclude_watched = excluded.exclude_watched,
			filter_mode = excluded.filter_mode,
			link_type = excluded.link_type,
			filter_decade = excluded.filter_decade,
			filter_actor = excluded.filter_actor,
			playlist_id = excluded.playlist_id,
			selected_client_name = excluded.selected_client_name,
			selected_client_identifier = excluded.selected_client_identifier,
			exclude_same_actors = excluded.exclude_same_actors,
			exclude_same_director = excluded.exclude_same_director,
			updated_at = excluded.updated_at
	`,
		prefs.UserID, prefs.ExcludeWatched, string(prefs.FilterMode), string(prefs.LinkType),
		prefs.FilterDecade, prefs.FilterActor, prefs.PlaylistID,
		prefs.SelectedClientName, prefs.SelectedClientIdentifier,
		prefs.ExcludeSameActors, prefs.ExcludeSameDirector, prefs.Created, prefs.Updated,
	)
	if err != nil {
		return fmt.Errorf("failed to save user preferences: %w", err)
	}
	return nil
}

// SavePlaylistID stores only the playlist handle, leaving other preferences untouched.
func (s *PreferenceStore) SavePlaylistID(ctx context.Context, userID int, playlistID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_preferences SET playlist_id = ?, updated_at = ? WHERE user_id = ?
	`, playlistID, time.Now().UTC().Truncate(time.Second), userID)
	if err != nil {
		return fmt.Errorf("failed to save playlist id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
