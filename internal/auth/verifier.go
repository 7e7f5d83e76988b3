// Package auth identifies API callers from Google ID tokens and runs the
// Google sign-in flow that yields them.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// IdentityVerifier turns a bearer token into a user id
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (userID string, err error)
}

// OIDCVerifier verifies ID tokens issued for one client
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier discovers Google's signing keys and verifies tokens
// whose audience is clientID.
func NewGoogleVerifier(ctx context.Context, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, GoogleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to query OIDC provider: %w", err)
	}
	return NewOIDCVerifier(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// NewOIDCVerifier wraps an ID token verifier
func NewOIDCVerifier(verifier *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: verifier}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("invalid token claims: %w", err)
	}
	if claims.Sub == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Sub, nil
}
