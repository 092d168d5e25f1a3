// Package federation contains login strategies backed by external identity
// providers.
package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/jimiolaniyan/blockhub"
)

// Config describes an OAuth2 provider that supports the resource owner
// password grant and exposes an OpenID style userinfo endpoint.
type Config struct {
	Type         string
	ClientID     string
	ClientSecret string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

// PasswordGrant verifies external credentials by exchanging them for a token
// at the provider.
type PasswordGrant struct {
	providerType string
	oauth        *oauth2.Config
	userInfoURL  string
	client       *http.Client
}

func NewPasswordGrant(cfg Config) (*PasswordGrant, error) {
	if cfg.Type == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, errors.New("federation: type, token url and userinfo url are required")
	}

	return &PasswordGrant{
		providerType: cfg.Type,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
			Scopes:       cfg.Scopes,
		},
		userInfoURL: cfg.UserInfoURL,
		client:      http.DefaultClient,
	}, nil
}

func (g *PasswordGrant) Type() string {
	return g.providerType
}

func (g *PasswordGrant) Authenticate(ctx context.Context, username, secret string) error {
	_, err := g.token(ctx, username, secret)
	return err
}

func (g *PasswordGrant) Email(ctx context.Context, username, secret string) (string, error) {
	token, err := g.token(ctx, username, secret)
	if err != nil {
		return "", err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return "", err
	}

	res, err := g.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return "", fmt.Errorf("%s userinfo: %w", g.providerType, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s userinfo: unexpected status %d", g.providerType, res.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("%s userinfo: %w", g.providerType, err)
	}
	if info.Email == "" {
		return "", fmt.Errorf("%s userinfo: no email for %s", g.providerType, username)
	}
	return info.Email, nil
}

func (g *PasswordGrant) token(ctx context.Context, username, secret string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	token, err := g.oauth.PasswordCredentialsToken(ctx, username, secret)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: %s rejected %s", blockhub.ErrExternalAuth, g.providerType, username)
		}
		return nil, fmt.Errorf("%s token: %w", g.providerType, err)
	}
	return token, nil
}
