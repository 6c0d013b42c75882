package services

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/cryptox"
	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

// TokenService seals session tokens for the hop through the client and opens
// them again at sign time. Tokens are never persisted.
type TokenService struct {
	key *cryptox.AesKey
}

func NewTokenService(key *cryptox.AesKey) *TokenService {
	return &TokenService{key: key}
}

// Issue serializes, encrypts and base64-encodes the token.
func (s *TokenService) Issue(token *models.SessionToken) (string, error) {
	plaintext, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("failed to encode session token: %w", err)
	}
	ciphertext, err := s.key.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt session token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Issue. Any tampering or truncation surfaces as
// common.ErrInvalidToken; the cryptox sentinels stay in the chain for
// callers that care why.
func (s *TokenService) Open(encoded string) (*models.SessionToken, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	plaintext, err := s.key.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	var token models.SessionToken
	if err := json.Unmarshal(plaintext, &token); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	return &token, nil
}
