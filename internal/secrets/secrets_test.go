package secrets

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSecrets_Get(t *testing.T) {
	t.Setenv("DC_SECRET_SIGNING_DATABASE_CREDENTIALS", `{"username":"u","password":"p"}`)

	s := &EnvSecrets{Prefix: "DC_SECRET"}
	value, err := s.Get(context.Background(), KeyDBCredentials)
	require.NoError(t, err)
	assert.Equal(t, `{"username":"u","password":"p"}`, value)

	_, err = s.Get(context.Background(), KeyTokenEncryptionKey)
	assert.Error(t, err)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "DC_SECRET_SIGNATURE_TOKEN_ENCRYPTION_KEY", envName("DC_SECRET", KeyTokenEncryptionKey))
	assert.Equal(t, "CONSENT_SIGNING_MATERIAL", envName("", KeyConsentSigningMaterial))
	// trailing underscore on the prefix is not doubled
	assert.Equal(t, "X_SIGNING_SIGNING_MATERIAL", envName("X_", KeySigningSigningMaterial))
}

func TestParseDBCredentials(t *testing.T) {
	creds, err := ParseDBCredentials(`{"username":"u","password":"p"}`)
	require.NoError(t, err)
	assert.Equal(t, "u", creds.Username)
	assert.Equal(t, "p", creds.Password)

	_, err = ParseDBCredentials("{broken")
	assert.Error(t, err)
}

func TestParseTokenKey(t *testing.T) {
	key, err := ParseTokenKey(base64.StdEncoding.EncodeToString(make([]byte, 16)))
	require.NoError(t, err)
	require.NotNil(t, key)

	_, err = ParseTokenKey(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	assert.Error(t, err)

	_, err = ParseTokenKey("%%% not base64")
	assert.Error(t, err)
}

func testSigningMaterialJSON(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	raw, err := json.Marshal(map[string]string{
		"private-key": base64.StdEncoding.EncodeToString(keyPEM),
		"public-cert": base64.StdEncoding.EncodeToString(certPEM),
	})
	require.NoError(t, err)
	return string(raw)
}

func TestParseSigningMaterial(t *testing.T) {
	m, err := ParseSigningMaterial(testSigningMaterialJSON(t), "Healthmetrix GmbH")
	require.NoError(t, err)
	assert.NotNil(t, m.Key)
	assert.NotNil(t, m.Cert)
	assert.Equal(t, "Healthmetrix GmbH", m.SignerName)
}

func TestParseSigningMaterial_MissingFields(t *testing.T) {
	_, err := ParseSigningMaterial(`{"public-cert":"x"}`, "s")
	assert.ErrorContains(t, err, "no private key")

	_, err = ParseSigningMaterial(`{"private-key":"x"}`, "s")
	assert.ErrorContains(t, err, "no public cert")

	_, err = ParseSigningMaterial("{broken", "s")
	assert.Error(t, err)
}
