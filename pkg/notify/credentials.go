package notify

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// OAuth2 scopes requested for the service account
var googleScopes = []string{
	"https://www.googleapis.com/auth/webmasters",
	"https://www.googleapis.com/auth/indexing",
}

// LoadCredentials builds an OAuth2 client from a service-account JSON key.
// Token requests go through base so they share its transport and timeouts.
func LoadCredentials(ctx context.Context, path string, base *http.Client) (*http.Client, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no credentials file configured", utils.ErrCredentials)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", utils.ErrCredentials, path, err)
	}
	conf, err := google.JWTConfigFromJSON(data, googleScopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", utils.ErrCredentials, path, err)
	}
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	client := conf.Client(ctx)
	if base != nil {
		client.Timeout = base.Timeout
	}
	return client, nil
}
