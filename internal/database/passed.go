package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"moviepicker/internal/types"
)

// PassedLedger records movies a user skipped and when each skip lapses.
type PassedLedger struct {
	db     *sql.DB
	now    func() time.Time
	window time.Duration
}

func NewPassedLedger(db *sql.DB) *PassedLedger {
	return &PassedLedger{
		db:     db,
		now:    time.Now,
		window: types.PassWindow,
	}
}

// WithClock swaps the time source.
func (l *PassedLedger) WithClock(now func() time.Time) *PassedLedger {
	l.now = now
	return l
}

func (l *PassedLedger) currentTime() time.Time {
	return l.now().UTC().Truncate(time.Second)
}

// expiryCutoff is now rounded up to the whole second. Stored expiries are
// whole seconds, so expires_at >= cutoff holds exactly when expires_at >= now.
func (l *PassedLedger) expiryCutoff() time.Time {
	now := l.now().UTC()
	cutoff := now.Truncate(time.Second)
	if cutoff.Before(now) {
		cutoff = cutoff.Add(time.Second)
	}
	return cutoff
}

// Upsert records a pass. Passing the same movie again refreshes the window
// instead of adding a second row.
func (l *PassedLedger) Upsert(ctx context.Context, userID int, ratingKey, title string) (*types.PassedRecord, error) {
	passedAt := l.currentTime()
	expiresAt := passedAt.Add(l.window)

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO passed_movies (user_id, rating_key, title, passed_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, rating_key) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE passed_movies.title END,
			passed_at = excluded.passed_at,
			expires_at = excluded.expires_at
	`, userID, ratingKey, title, passedAt, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record pass: %w", err)
	}

	record := types.PassedRecord{UserID: userID}
	err = l.db.QueryRowContext(ctx, `
		SELECT id, rating_key, title, passed_at, expires_at
		FROM passed_movies
		WHERE user_id = ? AND rating_key = ?
	`, userID, ratingKey).Scan(&record.ID, &record.RatingKey, &record.Title, &record.PassedAt, &record.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read pass: %w", err)
	}
	record.IsExpired = record.Expired(passedAt)
	return &record, nil
}

// ActiveKeys returns the rating keys whose pass has not expired.
func (l *PassedLedger) ActiveKeys(ctx context.Context, userID int) (map[string]struct{}, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT rating_key FROM passed_movies
		WHERE user_id = ? AND expires_at >= ?
	`, userID, l.expiryCutoff())
	if err != nil {
		return nil, fmt.Errorf("failed to query active passes: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

// List returns all of the user's passes, newest first, expired ones included.
func (l *PassedLedger) List(ctx context.Context, userID int) ([]types.PassedRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, rating_key, title, passed_at, expires_at
		FROM passed_movies
		WHERE user_id = ?
		ORDER BY passed_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list passes: %w", err)
	}
	defer rows.Close()

	now := l.now().UTC()
	records := []types.PassedRecord{}
	for rows.Next() {
		record := types.PassedRecord{UserID: userID}
		if err := rows.Scan(&record.ID, &record.RatingKey, &record.Title, &record.PassedAt, &record.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		record.IsExpired = record.Expired(now)
		records = append(records, record)
	}
	return records, rows.Err()
}

// Delete removes one pass owned by the user. ErrNotFound if it is not theirs.
func (l *PassedLedger) Delete(ctx context.Context, userID, recordID int) error {
	res, err := l.db.ExecContext(ctx, `
		DELETE FROM passed_movies WHERE id = ? AND user_id = ?
	`, recordID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete pass: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete pass: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpired deletes lapsed passes for every user and returns how many went.
func (l *PassedLedger) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
		DELETE FROM passed_movies WHERE expires_at < ?
	`, l.expiryCutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired passes: %w", err)
	}
	return res.RowsAffected()
}
