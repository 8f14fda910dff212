package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Verifier exchanges a bearer token for the identity provider's claims
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// VerifierFunc adapts a function to the Verifier interface
type VerifierFunc func(ctx context.Context, token string) (*Claims, error)

// Verify calls f
func (f VerifierFunc) Verify(ctx context.Context, token string) (*Claims, error) {
	return f(ctx, token)
}

// OIDCVerifier verifies access tokens against an OpenID Connect provider's
// userinfo endpoint. The provider rejects expired or forged tokens, so a
// successful call doubles as signature and expiry validation.
type OIDCVerifier struct {
	provider *oidc.Provider
	client   *http.Client
}

// NewOIDCVerifier runs provider discovery for issuer. client may be nil,
// in which case http.DefaultClient is used.
func NewOIDCVerifier(ctx context.Context, issuer string, client *http.Client) (*OIDCVerifier, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider %s: %w", issuer, err)
	}

	return &OIDCVerifier{provider: provider, client: client}, nil
}

// Verify fetches the userinfo document for token
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if v.client != nil {
		ctx = oidc.ClientContext(ctx, v.client)
	}

	info, err := v.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}

	var extra struct {
		Name     string `json:"name"`
		Nickname string `json:"nickname"`
	}
	if err := info.Claims(&extra); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo claims: %w", err)
	}

	name := extra.Name
	if name == "" {
		name = extra.Nickname
	}

	return &Claims{
		Subject:       info.Subject,
		Email:         info.Email,
		Name:          name,
		EmailVerified: info.EmailVerified,
	}, nil
}

// Local development identity used when security is disabled
const (
	LocalSessionToken = "local-session"
	LocalAuthID       = "local|aturing"
	LocalEmail        = "aturing@lumeer.io"
	LocalName         = "Alan Turing"
)

// LocalVerifier resolves every token to the local development identity
type LocalVerifier struct{}

// Verify returns the local identity without any network call
func (LocalVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	return &Claims{
		Subject:       LocalAuthID,
		Email:         LocalEmail,
		Name:          LocalName,
		EmailVerified: true,
	}, nil
}
