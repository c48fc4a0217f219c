package mail

import (
	"context"
	"fmt"

	"github.com/emersion/go-sasl"
	"golang.org/x/oauth2"
)

// Google token endpoint used for Gmail refresh tokens
const googleTokenURL = "https://oauth2.googleapis.com/token"

// GmailScope grants full IMAP access to a Gmail mailbox
const GmailScope = "https://mail.google.com/"

// OAuthConfig holds the credentials for OAUTHBEARER login
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string // defaults to Google's endpoint
}

// Enabled reports whether enough is configured to attempt OAuth login
func (c *OAuthConfig) Enabled() bool {
	return c != nil && c.ClientID != "" && c.RefreshToken != ""
}

// TokenSource returns a refreshing token source for the configured credentials
func (c *OAuthConfig) TokenSource(ctx context.Context) oauth2.TokenSource {
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}
	conf := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		Scopes:       []string{GmailScope},
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: c.RefreshToken})
}

// saslClient builds an OAUTHBEARER client from a fresh access token
func saslClient(ts oauth2.TokenSource, username string) (sasl.Client, error) {
	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}
	return sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: username,
		Token:    tok.AccessToken,
	}), nil
}
