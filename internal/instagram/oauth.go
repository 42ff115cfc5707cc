package instagram

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	authURL        = "https://api.instagram.com/oauth/authorize"
	accessTokenURL = "https://api.instagram.com/oauth/access_token"
)

// Endpoint is Instagram's OAuth2 endpoint. Credentials are posted in the
// request body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   authURL,
	TokenURL:  accessTokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// OAuth wraps the authorization-code flow used to obtain an access token for
// the API client.
type OAuth struct {
	config *oauth2.Config
}

// NewOAuth creates the OAuth helper. All three values are required.
func NewOAuth(clientID, clientSecret, redirectURL string) (*OAuth, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, fmt.Errorf("instagram oauth config missing required fields")
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     Endpoint,
			Scopes:       []string{"basic"},
		},
	}, nil
}

// AuthCodeURL returns the URL the user visits to grant access.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an access token.
func (o *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("instagram token exchange failed: %w", err)
	}
	return token.AccessToken, nil
}
