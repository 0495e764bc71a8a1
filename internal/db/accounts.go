package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAccountNotFound is returned when a requested account cannot be found.
var ErrAccountNotFound = errors.New("account not found")

// GetOrCreateAccount returns the account's id for the given email.
// If no account exists with that email, it creates a new one.
func GetOrCreateAccount(ctx context.Context, pool *pgxpool.Pool, email string) (string, error) {
	var accountID string

	err := pool.QueryRow(ctx, `
		INSERT INTO accounts (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, email).Scan(&accountID)

	if err != nil {
		return "", fmt.Errorf("failed to get or create account: %w", err)
	}

	return accountID, nil
}

// SetAccountLastSynced records the time the account's sweep completed.
func SetAccountLastSynced(ctx context.Context, pool *pgxpool.Pool, accountID string) error {
	_, err := pool.Exec(ctx, `
		UPDATE accounts SET last_synced_at = now() WHERE id = $1
	`, accountID)

	if err != nil {
		return fmt.Errorf("failed to set account last synced: %w", err)
	}

	return nil
}

// GetAccountLastSynced returns when the account was last fully swept, or nil
// if it never was.
func GetAccountLastSynced(ctx context.Context, pool *pgxpool.Pool, accountID string) (*time.Time, error) {
	var lastSynced *time.Time

	err := pool.QueryRow(ctx, `
		SELECT last_synced_at FROM accounts WHERE id = $1
	`, accountID).Scan(&lastSynced)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get account last synced: %w", err)
	}

	return lastSynced, nil
}
