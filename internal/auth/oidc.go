package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// IDTokenVerifier is satisfied by *oidc.IDTokenVerifier.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// ExternalIdentity is the subset of an OpenID Connect id token used to sign a user in.
type ExternalIdentity struct {
	Issuer  string
	Subject string
	Email   string
	Name    string
}

var ErrUnverifiedEmail = errors.New("id token has no verified email")

// NewOIDCVerifier discovers the provider at issuer and returns a verifier for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", issuer, err)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

// VerifyIDToken checks raw with v and extracts the identity. The token must carry
// an email the provider has verified.
func VerifyIDToken(ctx context.Context, v IDTokenVerifier, raw string) (*ExternalIdentity, error) {
	tok, err := v.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := tok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" || !claims.EmailVerified {
		return nil, ErrUnverifiedEmail
	}
	return &ExternalIdentity{
		Issuer:  tok.Issuer,
		Subject: tok.Subject,
		Email:   email,
		Name:    strings.TrimSpace(claims.Name),
	}, nil
}
