// Package cryptox implements the symmetric cipher used for signature
// session tokens: AES-GCM with a 128-bit tag and a random 12-byte nonce
// per message.
//
// The wire format is a self-describing frame:
//
//	[4-byte big-endian nonce length][nonce][ciphertext || tag]
//
// Decrypt rejects nonce lengths outside [12,16] bytes as malformed input
// before attempting AEAD decryption, so a truncated or corrupted frame never
// reaches the cipher.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/healthmetrix/dynamic-consent/internal/common"
)

// KeySize is the only supported key length (AES-128).
const KeySize = 16

const (
	nonceSize    = 12
	maxNonceSize = 16
	prefixSize   = 4
)

// AesKey wraps a static AES-128 key set once at process startup.
type AesKey struct {
	block cipher.Block
}

// NewAesKey builds an AesKey from a raw 16-byte key.
func NewAesKey(key []byte) (*AesKey, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aes key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return &AesKey{block: block}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the framed
// message. Any byte string, including empty, is a valid plaintext.
func (k *AesKey) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(k.block)
	if err != nil {
		return nil, err
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	msg := make([]byte, prefixSize+len(nonce)+len(ciphertext))
	binary.BigEndian.PutUint32(msg, uint32(len(nonce)))
	copy(msg[prefixSize:], nonce)
	copy(msg[prefixSize+len(nonce):], ciphertext)

	return msg, nil
}

// Decrypt parses the frame and opens the ciphertext. Malformed framing
// surfaces as common.ErrMalformedCiphertext, authentication failures as
// common.ErrDecryptFailed; partial plaintext is never returned.
func (k *AesKey) Decrypt(msg []byte) ([]byte, error) {
	if len(msg) < prefixSize {
		return nil, fmt.Errorf("%w: missing nonce length prefix", common.ErrMalformedCiphertext)
	}

	nonceLen := int(binary.BigEndian.Uint32(msg))
	if nonceLen < nonceSize || nonceLen > maxNonceSize {
		return nil, fmt.Errorf("%w: invalid nonce length %d", common.ErrMalformedCiphertext, nonceLen)
	}
	if len(msg) < prefixSize+nonceLen {
		return nil, fmt.Errorf("%w: truncated nonce", common.ErrMalformedCiphertext)
	}

	nonce := msg[prefixSize : prefixSize+nonceLen]
	ciphertext := msg[prefixSize+nonceLen:]

	aead, err := cipher.NewGCMWithNonceSize(k.block, nonceLen)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptFailed, err)
	}

	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}
