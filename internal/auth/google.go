package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

// GoogleIssuer is the issuer of Google ID tokens
const GoogleIssuer = "https://accounts.google.com"

// OAuthConfig holds the Google OAuth client settings
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Session is what the dashboard keeps after signing in: the ID token
// identifies the user to this API and the access token reads their
// YouTube subscriptions.
type Session struct {
	IDToken      string    `json:"idToken"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// NewGoogleProvider returns an oauth2.Config for Google sign-in with read
// access to the user's YouTube account.
func NewGoogleProvider(cfg OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile", youtube.YoutubeReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// LoginURL is the consent page URL for state
func LoginURL(oauthCfg *oauth2.Config, state string) string {
	return oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a Session
func Exchange(ctx context.Context, oauthCfg *oauth2.Config, code string) (*Session, error) {
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return nil, errors.New("oauth exchange: response has no id_token")
	}

	return &Session{
		IDToken:      idToken,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}
