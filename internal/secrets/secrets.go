// Package secrets resolves the runtime secrets of the service: database
// credentials, document signing material and the session token key.
package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/healthmetrix/dynamic-consent/internal/cryptox"
	"github.com/healthmetrix/dynamic-consent/internal/pdfx"
)

// Key is a well-known secret location.
type Key string

const (
	KeyDBCredentials          Key = "signing/database-credentials"
	KeyConsentSigningMaterial Key = "consent/signing-material"
	KeySigningSigningMaterial Key = "signing/signing-material"
	KeyTokenEncryptionKey     Key = "signature-token-encryption-key"
	KeyJWTVerificationSecret  Key = "signing/jwt-verification-secret"
)

type Secrets interface {
	Get(ctx context.Context, key Key) (string, error)
}

// EnvSecrets reads secrets from environment variables. The variable name is
// the prefixed, mangled location: signing/database-credentials with prefix
// DC_SECRET becomes DC_SECRET_SIGNING_DATABASE_CREDENTIALS.
type EnvSecrets struct {
	Prefix string
}

func (s *EnvSecrets) Get(_ context.Context, key Key) (string, error) {
	name := envName(s.Prefix, key)
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("secret %s not set (env %s)", key, name)
	}
	return value, nil
}

func envName(prefix string, key Key) string {
	mangled := strings.NewReplacer("/", "_", "-", "_").Replace(string(key))
	name := strings.ToUpper(mangled)
	if prefix != "" {
		name = strings.TrimSuffix(prefix, "_") + "_" + name
	}
	return name
}

// DBCredentials is the JSON shape of the database credentials secret.
type DBCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func ParseDBCredentials(value string) (*DBCredentials, error) {
	var creds DBCredentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return nil, fmt.Errorf("failed to parse database credentials: %w", err)
	}
	return &creds, nil
}

// ParseSigningMaterial decodes a signing material secret: a JSON object with
// base64-encoded PEM under private-key and public-cert.
func ParseSigningMaterial(value, signerName string) (*pdfx.SigningMaterial, error) {
	var raw struct {
		PrivateKey string `json:"private-key"`
		PublicCert string `json:"public-cert"`
	}
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse signing material: %w", err)
	}
	if raw.PrivateKey == "" {
		return nil, fmt.Errorf("no private key found in signing material")
	}
	if raw.PublicCert == "" {
		return nil, fmt.Errorf("no public cert found in signing material")
	}

	keyPEM, err := base64.StdEncoding.DecodeString(raw.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	certPEM, err := base64.StdEncoding.DecodeString(raw.PublicCert)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public cert: %w", err)
	}
	return pdfx.LoadSigningMaterial(keyPEM, certPEM, signerName)
}

// ParseTokenKey decodes the base64 session token key and checks its length.
func ParseTokenKey(value string) (*cryptox.AesKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token encryption key: %w", err)
	}
	if len(decoded) != cryptox.KeySize {
		return nil, fmt.Errorf("token encryption key is not of length %d", cryptox.KeySize)
	}
	return cryptox.NewAesKey(decoded)
}
