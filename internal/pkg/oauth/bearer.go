package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// NewBearerClient returns a client that authenticates every request with a
// static bearer token. base supplies the transport and timeout; nil means
// http.DefaultClient.
func NewBearerClient(ctx context.Context, token string, base *http.Client) *http.Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	})
	client := oauth2.NewClient(ctx, src)
	if base != nil {
		client.Timeout = base.Timeout
	}
	return client
}
