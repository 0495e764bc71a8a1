package models

import "time"

// Identity is a resolved display identity for an opaque remote user id.
type Identity struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Domain      string `json:"domain"`
	ResolvedBy  string `json:"resolved_by"`
	Confidence  int    `json:"confidence"`
}

// IdentityCacheEntry is one row of the best-effort identity cache. The cache
// is never authoritative: entries may be stale or low-confidence.
type IdentityCacheEntry struct {
	RemoteUserID string     `json:"remote_user_id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	Domain       string     `json:"domain"`
	ResolvedBy   string     `json:"resolved_by"`
	Confidence   int        `json:"confidence"`
	SeenCount    int        `json:"seen_count"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
}
