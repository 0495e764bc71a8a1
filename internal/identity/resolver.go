// Package identity resolves opaque remote user ids to display identities.
//
// Resolution never fails and never blocks on remote I/O: every path
// terminates in a usable identity, because a syncing message must never be
// dropped just because its sender cannot be positively identified.
package identity

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chatvault/chatvault/internal/models"
)

// Cache is the injected identity cache handle. Implementations must make
// writes idempotent/commutative: Upsert and Touch are called fire-and-forget
// from many call sites and may arrive duplicated or out of order.
type Cache interface {
	Get(ctx context.Context, remoteUserID string) (*models.IdentityCacheEntry, error)
	Upsert(ctx context.Context, entry *models.IdentityCacheEntry) error
	Touch(ctx context.Context, remoteUserID string) error
}

// Directory is an optional directory-lookup tier. The default deployment has
// none; a nil Directory is treated as an always-miss.
type Directory interface {
	Lookup(ctx context.Context, remoteUserID string) (*models.Identity, error)
}

const (
	resolvedByCache       = "cache"
	resolvedByDirectory   = "directory"
	resolvedByLiteral     = "literal-email"
	resolvedBySynthesized = "synthesized"

	confidenceLiteral     = 100
	confidenceSynthesized = 30

	// cacheWriteTimeout bounds the detached goroutines that persist cache
	// entries; they must never outlive the process by much or pile up.
	cacheWriteTimeout = 5 * time.Second
)

// Resolver resolves sender identities through a tiered lookup.
type Resolver struct {
	cache     Cache
	directory Directory
}

// NewResolver creates a resolver over the given cache. directory may be nil.
func NewResolver(cache Cache, directory Directory) *Resolver {
	return &Resolver{cache: cache, directory: directory}
}

// Resolve maps a remote user id to a display identity. Tiers, first match
// wins: cache, directory (if any), literal-email, synthesized placeholder.
// The returned identity always has a non-empty Email and DisplayName.
func (r *Resolver) Resolve(ctx context.Context, accountEmail, remoteUserID string) models.Identity {
	raw := normalizeRemoteID(remoteUserID)

	// A raw value that is itself an email short-circuits straight to the
	// literal tier; there is nothing better any lookup could add.
	if strings.Contains(raw, "@") {
		return r.literalEmail(raw)
	}

	if entry, err := r.cache.Get(ctx, raw); err == nil {
		// Best-effort bump; a slow or failing cache write must never slow
		// down or fail the caller.
		go func() {
			touchCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
			defer cancel()
			if err := r.cache.Touch(touchCtx, raw); err != nil {
				log.Printf("Warning: failed to touch identity cache for %s: %v", raw, err)
			}
		}()
		return models.Identity{
			Email:       entry.Email,
			DisplayName: entry.DisplayName,
			Domain:      entry.Domain,
			ResolvedBy:  resolvedByCache,
			Confidence:  entry.Confidence,
		}
	}

	if r.directory != nil {
		if id, err := r.directory.Lookup(ctx, raw); err == nil && id != nil {
			id.ResolvedBy = resolvedByDirectory
			r.persistAsync(raw, *id)
			return *id
		}
	}

	return r.synthesize(accountEmail, raw)
}

// literalEmail builds an identity from a raw value that is already an email.
func (r *Resolver) literalEmail(email string) models.Identity {
	localPart := email
	domain := ""
	if idx := strings.Index(email, "@"); idx >= 0 {
		localPart = email[:idx]
		domain = email[idx+1:]
	}
	if localPart == "" {
		localPart = email
	}

	id := models.Identity{
		Email:       email,
		DisplayName: localPart,
		Domain:      domain,
		ResolvedBy:  resolvedByLiteral,
		Confidence:  confidenceLiteral,
	}
	r.persistAsync(email, id)
	return id
}

// synthesize builds the deterministic placeholder identity for an id nothing
// else could resolve.
func (r *Resolver) synthesize(accountEmail, raw string) models.Identity {
	shortID := raw
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	if shortID == "" {
		shortID = "unknown"
	}

	domain := ""
	if idx := strings.Index(accountEmail, "@"); idx >= 0 {
		domain = accountEmail[idx+1:]
	}
	if domain == "" {
		domain = "unknown.invalid"
	}

	id := models.Identity{
		Email:       fmt.Sprintf("user-%s@%s", shortID, domain),
		DisplayName: fmt.Sprintf("User %s", shortID),
		Domain:      domain,
		ResolvedBy:  resolvedBySynthesized,
		Confidence:  confidenceSynthesized,
	}
	r.persistAsync(raw, id)
	return id
}

// persistAsync writes an identity into the cache on a detached goroutine.
// Errors are logged and swallowed.
func (r *Resolver) persistAsync(remoteUserID string, id models.Identity) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		entry := &models.IdentityCacheEntry{
			RemoteUserID: remoteUserID,
			Email:        id.Email,
			DisplayName:  id.DisplayName,
			Domain:       id.Domain,
			ResolvedBy:   id.ResolvedBy,
			Confidence:   id.Confidence,
		}
		if err := r.cache.Upsert(ctx, entry); err != nil {
			log.Printf("Warning: failed to persist identity for %s: %v", remoteUserID, err)
		}
	}()
}

// normalizeRemoteID strips a path-style prefix ("users/12345" -> "12345")
// from a remote user id.
func normalizeRemoteID(remoteUserID string) string {
	raw := strings.TrimSpace(remoteUserID)
	if idx := strings.LastIndex(raw, "/"); idx >= 0 {
		raw = raw[idx+1:]
	}
	return raw
}
