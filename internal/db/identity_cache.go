package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatvault/chatvault/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdentityNotFound is returned when a remote user id has no cache entry.
var ErrIdentityNotFound = errors.New("identity not found")

// IdentityCache is the Postgres-backed identity cache. It satisfies
// identity.Cache; writes are idempotent upserts and counter increments so
// concurrent fire-and-forget callers cannot corrupt it.
type IdentityCache struct {
	Pool *pgxpool.Pool
}

// Get returns the cache entry for a remote user id.
func (c *IdentityCache) Get(ctx context.Context, remoteUserID string) (*models.IdentityCacheEntry, error) {
	var entry models.IdentityCacheEntry

	err := c.Pool.QueryRow(ctx, `
		SELECT remote_user_id, email, display_name, domain, resolved_by, confidence, seen_count, last_seen
		FROM identity_cache
		WHERE remote_user_id = $1
	`, remoteUserID).Scan(
		&entry.RemoteUserID,
		&entry.Email,
		&entry.DisplayName,
		&entry.Domain,
		&entry.ResolvedBy,
		&entry.Confidence,
		&entry.SeenCount,
		&entry.LastSeen,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrIdentityNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	return &entry, nil
}

// Upsert inserts or refreshes a cache entry. A higher-confidence existing
// entry is never downgraded by a lower-confidence write.
func (c *IdentityCache) Upsert(ctx context.Context, entry *models.IdentityCacheEntry) error {
	_, err := c.Pool.Exec(ctx, `
		INSERT INTO identity_cache (remote_user_id, email, display_name, domain, resolved_by, confidence, seen_count, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, 1, now())
		ON CONFLICT (remote_user_id) DO UPDATE SET
			email = CASE WHEN EXCLUDED.confidence >= identity_cache.confidence THEN EXCLUDED.email ELSE identity_cache.email END,
			display_name = CASE WHEN EXCLUDED.confidence >= identity_cache.confidence THEN EXCLUDED.display_name ELSE identity_cache.display_name END,
			domain = CASE WHEN EXCLUDED.confidence >= identity_cache.confidence THEN EXCLUDED.domain ELSE identity_cache.domain END,
			resolved_by = CASE WHEN EXCLUDED.confidence >= identity_cache.confidence THEN EXCLUDED.resolved_by ELSE identity_cache.resolved_by END,
			confidence = GREATEST(EXCLUDED.confidence, identity_cache.confidence),
			seen_count = identity_cache.seen_count + 1,
			last_seen = now()
	`,
		entry.RemoteUserID,
		entry.Email,
		entry.DisplayName,
		entry.Domain,
		entry.ResolvedBy,
		entry.Confidence,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert identity: %w", err)
	}

	return nil
}

// Touch bumps the seen counter and last-seen time for a cache hit.
// Commutative, so duplicate or out-of-order calls are harmless.
func (c *IdentityCache) Touch(ctx context.Context, remoteUserID string) error {
	_, err := c.Pool.Exec(ctx, `
		UPDATE identity_cache
		SET seen_count = seen_count + 1, last_seen = now()
		WHERE remote_user_id = $1
	`, remoteUserID)

	if err != nil {
		return fmt.Errorf("failed to touch identity: %w", err)
	}

	return nil
}
