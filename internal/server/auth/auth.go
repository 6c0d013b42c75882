// Package auth turns the bearer token carried through the signature session
// into an external identity.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/healthmetrix/dynamic-consent/internal/common"
)

// Identity is what a verified token says about the user: the stable external
// reference id plus any opaque string claims worth keeping with the consent.
type Identity struct {
	ExternalRefID string
	Metadata      map[string]string
}

// Verifier validates tokens of the issuers it claims.
type Verifier interface {
	Issuers() []string
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Extractor resolves a raw bearer token to an identity.
type Extractor interface {
	Extract(ctx context.Context, token string) (*Identity, error)
}

// VerifyingExtractor decodes the token's issuer without trusting it and
// dispatches to the one verifier registered for that issuer.
type VerifyingExtractor struct {
	verifiers []Verifier
}

func NewVerifyingExtractor(verifiers ...Verifier) *VerifyingExtractor {
	return &VerifyingExtractor{verifiers: verifiers}
}

func (e *VerifyingExtractor) Extract(ctx context.Context, token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token: %w", common.ErrUnauthorized, err)
	}
	issuer, err := claims.GetIssuer()
	if err != nil || issuer == "" {
		return nil, fmt.Errorf("%w: token has no issuer", common.ErrUnauthorized)
	}

	var match Verifier
	for _, v := range e.verifiers {
		for _, iss := range v.Issuers() {
			if iss == issuer {
				if match != nil {
					return nil, fmt.Errorf("%w: ambiguous verifier for issuer %s", common.ErrUnauthorized, issuer)
				}
				match = v
			}
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: no verifier found for issuer %s", common.ErrUnauthorized, issuer)
	}
	return match.Verify(ctx, token)
}

// PassthroughExtractor treats the raw token as the external ref id. Local
// profiles only.
type PassthroughExtractor struct{}

func (PassthroughExtractor) Extract(_ context.Context, token string) (*Identity, error) {
	return &Identity{ExternalRefID: token}, nil
}
