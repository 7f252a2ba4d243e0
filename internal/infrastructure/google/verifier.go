package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/testiflow-api/internal/domain"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// Payload holds the verified claims extracted from a Google ID token.
type Payload struct {
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
}

// Verifier verifies Google ID tokens against a specific client ID and, when a
// client secret is configured, exchanges authorization codes for them.
type Verifier struct {
	clientID string
	oauth    *oauth2.Config

	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
	exchange func(ctx context.Context, code string) (*oauth2.Token, error)
}

func NewVerifier(clientID, clientSecret, redirectURL string) *Verifier {
	v := &Verifier{clientID: clientID, validate: idtoken.Validate}
	if clientSecret != "" {
		v.oauth = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     googleoauth.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		}
		v.exchange = func(ctx context.Context, code string) (*oauth2.Token, error) {
			return v.oauth.Exchange(ctx, code)
		}
	}
	return v
}

// Verify validates the Google ID token and returns the extracted payload.
// Returns a domain.ErrUnauthorized-wrapped error if the token is invalid.
func (v *Verifier) Verify(ctx context.Context, token string) (*Payload, error) {
	p, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", domain.ErrUnauthorized)
	}
	email, _ := p.Claims["email"].(string)
	emailVerified, _ := p.Claims["email_verified"].(bool)
	name, _ := p.Claims["name"].(string)
	if name == "" {
		given, _ := p.Claims["given_name"].(string)
		family, _ := p.Claims["family_name"].(string)
		name = joinName(given, family)
	}
	return &Payload{
		Sub:           p.Subject,
		Email:         email,
		EmailVerified: emailVerified,
		Name:          name,
	}, nil
}

// Exchange trades an authorization code for tokens and verifies the ID token
// returned alongside them. Provider failures wrap domain.ErrUpstream; a
// rejected code wraps domain.ErrUnauthorized.
func (v *Verifier) Exchange(ctx context.Context, code string) (*Payload, error) {
	if v.exchange == nil {
		return nil, fmt.Errorf("google code exchange not configured: %w", domain.ErrBadRequest)
	}
	tok, err := v.exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("google rejected authorization code: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("google token exchange: %v: %w", err, domain.ErrUpstream)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, fmt.Errorf("google response has no id_token: %w", domain.ErrUpstream)
	}
	return v.Verify(ctx, raw)
}

func joinName(given, family string) string {
	switch {
	case given == "":
		return family
	case family == "":
		return given
	default:
		return given + " " + family
	}
}
