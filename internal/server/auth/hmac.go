package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/healthmetrix/dynamic-consent/internal/common"
)

// registered claim names never copied into identity metadata
var reservedClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
}

// HMACVerifier validates HS256 tokens against a shared secret.
type HMACVerifier struct {
	secret  []byte
	issuers []string
}

func NewHMACVerifier(secret []byte, issuers ...string) *HMACVerifier {
	return &HMACVerifier{secret: secret, issuers: issuers}
}

func (v *HMACVerifier) Issuers() []string {
	return v.issuers
}

// Verify checks the signature and expiry, requires a subject, and keeps the
// remaining string claims as identity metadata.
func (v *HMACVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", common.ErrUnauthorized)
	}

	var metadata map[string]string
	for name, value := range claims {
		if _, reserved := reservedClaims[name]; reserved {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata[name] = s
	}

	return &Identity{ExternalRefID: subject, Metadata: metadata}, nil
}
