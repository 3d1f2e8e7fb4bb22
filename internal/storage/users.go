package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoLogin is returned for an empty tailnet login.
var ErrNoLogin = errors.New("empty login")

// normalizeLogin folds a tailnet login so that case variants map to one user.
func normalizeLogin(login string) (string, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		return "", ErrNoLogin
	}
	return login, nil
}

// GetOrCreateUser returns the ID for login, creating the user on first
// sight. last_seen is bumped on every call; a blank displayName keeps the
// stored one.
func (db *DB) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	login, err := normalizeLogin(login)
	if err != nil {
		return 0, err
	}
	var id int
	err = db.Pool.QueryRow(ctx, `
		INSERT INTO users (login, display_name)
		VALUES ($1, $2)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = NOW(), display_name = COALESCE(NULLIF($2, ''), users.display_name)
		RETURNING id
	`, login, strings.TrimSpace(displayName)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting user %q: %w", login, err)
	}
	return id, nil
}
