package pdfx

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/sign"
)

// SigningMaterial carries the RSA key pair used for the detached document
// signature.
type SigningMaterial struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate

	// SignerName appears in the signature dictionary.
	SignerName string
}

// LoadSigningMaterial parses a PEM-encoded private key and certificate.
// PKCS#8 and PKCS#1 key encodings are both accepted.
func LoadSigningMaterial(keyPEM, certPEM []byte, signerName string) (*SigningMaterial, error) {
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("no PEM block in signing key")
	}

	var key *rsa.PrivateKey
	if parsed, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("signing key is not RSA")
		}
		key = rsaKey
	} else {
		rsaKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse signing key: %w", err)
		}
		key = rsaKey
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("no PEM block in signing certificate")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing certificate: %w", err)
	}

	return &SigningMaterial{Key: key, Cert: cert, SignerName: signerName}, nil
}

// SignDetached appends an incremental update carrying an
// adbe.pkcs7.detached SHA-256 CMS signature over the document.
func SignDetached(pdfBytes []byte, m *SigningMaterial) ([]byte, error) {
	rdr, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document for signing: %w", err)
	}

	var out bytes.Buffer
	err = sign.Sign(bytes.NewReader(pdfBytes), &out, rdr, int64(len(pdfBytes)), sign.SignData{
		Signature: sign.SignDataSignature{
			Info: sign.SignDataSignatureInfo{
				Name: m.SignerName,
				Date: time.Now(),
			},
			CertType:   sign.ApprovalSignature,
			DocMDPPerm: sign.AllowFillingExistingFormFieldsAndSignaturesPerms,
		},
		Signer:          m.Key,
		DigestAlgorithm: crypto.SHA256,
		Certificate:     m.Cert,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign document: %w", err)
	}
	return out.Bytes(), nil
}
