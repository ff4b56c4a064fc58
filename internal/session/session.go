// Package session provides session storage backends for refresh tokens.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("refresh session not found or expired")

// Store keeps refresh sessions keyed by the hash of the refresh token.
type Store interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	// RevokeUserSessions drops every session of a user, used when an account
	// is deactivated or deleted.
	RevokeUserSessions(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
	Close() error
}

// TokenData holds the data stored for each refresh token
type TokenData struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

const defaultTTL = 30 * 24 * time.Hour

func ttlUntil(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return defaultTTL
	}
	return ttl
}
