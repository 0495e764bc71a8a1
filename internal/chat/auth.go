package chat

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/google"
)

// NewImpersonatedHTTPClient builds an HTTP client authenticated as the
// service identity acting on behalf of subject (domain-wide delegation).
// Every remote API call for an account goes through a client impersonating
// that account.
func NewImpersonatedHTTPClient(ctx context.Context, credentialsJSON []byte, subject string, scopes []string) (*http.Client, error) {
	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}
	jwtConfig.Subject = subject

	return jwtConfig.Client(ctx), nil
}
