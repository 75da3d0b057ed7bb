package earthengine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
)

// ReadOnlyScope is the OAuth2 scope for read-only Earth Engine access.
const ReadOnlyScope = "https://www.googleapis.com/auth/earthengine.readonly"

// NewDefaultHTTPClient returns an HTTP client authorised with Application
// Default Credentials.
func NewDefaultHTTPClient(ctx context.Context, timeout time.Duration) (*http.Client, error) {
	client, err := google.DefaultClient(ctx, ReadOnlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to load application default credentials: %w", err)
	}
	client.Timeout = timeout
	return client, nil
}
