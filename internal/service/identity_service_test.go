package service

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/judyrop/tequilas-restaurant/internal/apperr"
	"github.com/judyrop/tequilas-restaurant/internal/auth"
	"github.com/judyrop/tequilas-restaurant/internal/store"
	"github.com/judyrop/tequilas-restaurant/internal/store/storetest"
	"github.com/judyrop/tequilas-restaurant/models"
)

func newIdentity(t *testing.T, verifier auth.IDTokenVerifier) (*IdentityService, *auth.TokenIssuer) {
	t.Helper()
	tokens := auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), "tequilas", "tequilas-web", 3*time.Hour)
	return NewIdentityService(store.New(storetest.Open(t)), tokens, verifier, zerolog.Nop()), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newIdentity(t, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{UserName: "alice", Email: "Alice@Example.com", Password: "Secret#1"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Empty(t, user.Roles)

	res, err := svc.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "Secret#1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", res.UserName)
	assert.WithinDuration(t, time.Now().Add(3*time.Hour), res.Expiration, time.Minute)

	claims, err := tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.UserID, claims.UserID)

	me, err := svc.Me(claims)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.UserName)

	_, err = svc.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong#A1"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "Secret#1"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestRegisterReportsEveryProblem(t *testing.T) {
	svc, _ := newIdentity(t, nil)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterRequest{UserName: "alice", Email: "alice@example.com", Password: "Secret#1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{UserName: "Alice", Email: "ALICE@example.com", Password: "weak"})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Contains(t, ae.Details, "Email 'ALICE@example.com' is already taken.")
	assert.Contains(t, ae.Details, "Username 'Alice' is already taken.")
	assert.Contains(t, ae.Details, "Passwords must be at least 6 characters.")

	_, err = svc.Register(ctx, RegisterRequest{UserName: "bob", Email: "not-an-email", Password: "Secret#1"})
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Fields, "email")
}

func TestEnsureAdmin(t *testing.T) {
	svc, _ := newIdentity(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "admin@tequilas.com", "Admin#123"))
	require.NoError(t, svc.EnsureAdmin(ctx, "admin@tequilas.com", "Admin#123"))

	res, err := svc.Login(ctx, LoginRequest{Email: "admin@tequilas.com", Password: "Admin#123"})
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, res.Roles)
	assert.Equal(t, "admin", res.UserName)

	assert.Error(t, svc.EnsureAdmin(ctx, "other@tequilas.com", ""))
	assert.NoError(t, svc.EnsureAdmin(ctx, "", ""))
}

func TestLoginWithIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	const issuer, clientID = "https://idp.example.com", "tequilas"
	verifier := oidc.NewVerifier(issuer, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}, &oidc.Config{ClientID: clientID})
	svc, _ := newIdentity(t, verifier)
	ctx := context.Background()

	sign := func(email, name string) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss": issuer, "aud": clientID, "sub": "ext-" + name,
			"iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix(),
			"email": email, "email_verified": true, "name": name,
		}).SignedString(key)
		require.NoError(t, err)
		return raw
	}

	_, err = svc.Register(ctx, RegisterRequest{UserName: "carol", Email: "carol@example.com", Password: "Secret#1"})
	require.NoError(t, err)

	// existing account is reused
	res, err := svc.LoginWithIDToken(ctx, sign("carol@example.com", "Carol Jones"))
	require.NoError(t, err)
	assert.Equal(t, "carol", res.UserName)

	// new account takes a free user name
	res, err = svc.LoginWithIDToken(ctx, sign("dave@example.com", "carol"))
	require.NoError(t, err)
	assert.Equal(t, "carol2", res.UserName)
	assert.Equal(t, "dave@example.com", res.Email)

	_, err = svc.LoginWithIDToken(ctx, "garbage")
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	disabled, _ := newIdentity(t, nil)
	_, err = disabled.LoginWithIDToken(ctx, sign("dave@example.com", "dave"))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
