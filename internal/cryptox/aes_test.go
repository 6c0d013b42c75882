package cryptox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/healthmetrix/dynamic-consent/internal/common"
)

func testKey(t *testing.T) *AesKey {
	t.Helper()
	k, err := NewAesKey(bytes.Repeat([]byte{0x42}, KeySize))
	if err != nil {
		t.Fatalf("NewAesKey error: %v", err)
	}
	return k
}

func TestNewAesKey_RejectsWrongSize(t *testing.T) {
	for _, n := range []int{0, 15, 17, 24, 32} {
		if _, err := NewAesKey(make([]byte, n)); err == nil {
			t.Errorf("expected error for %d-byte key", n)
		}
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	k := testKey(t)

	plaintexts := [][]byte{
		{},
		[]byte("a"),
		[]byte("hello world"),
		bytes.Repeat([]byte{0xAB}, 17),  // longer than one AES block
		bytes.Repeat([]byte{0x00}, 512), // several blocks of zeros
	}

	for _, p := range plaintexts {
		msg, err := k.Encrypt(p)
		if err != nil {
			t.Fatalf("Encrypt error: %v", err)
		}

		got, err := k.Decrypt(msg)
		if err != nil {
			t.Fatalf("Decrypt error for %d-byte plaintext: %v", len(p), err)
		}
		if !bytes.Equal(got, p) {
			t.Errorf("round trip mismatch: got %x, want %x", got, p)
		}
	}
}

func TestEncrypt_FreshNonces(t *testing.T) {
	k := testKey(t)

	a, err := k.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := k.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext must differ")
	}
}

func TestDecrypt_RejectsTampering(t *testing.T) {
	k := testKey(t)

	msg, err := k.Encrypt([]byte("some signed consent context"))
	if err != nil {
		t.Fatal(err)
	}

	// Flip a single bit at every position; none may decrypt.
	for i := range msg {
		tampered := bytes.Clone(msg)
		tampered[i] ^= 0x01

		got, err := k.Decrypt(tampered)
		if err == nil {
			t.Fatalf("bit flip at byte %d was accepted", i)
		}
		if got != nil {
			t.Fatalf("bit flip at byte %d returned plaintext", i)
		}
	}
}

func TestDecrypt_MalformedFraming(t *testing.T) {
	k := testKey(t)

	tests := []struct {
		name string
		msg  []byte
	}{
		{"empty", nil},
		{"short prefix", []byte{0x00, 0x00}},
		{"nonce too short", frame(t, 11)},
		{"nonce too long", frame(t, 17)},
		{"huge nonce length", frame(t, 1 << 20)},
		{"truncated nonce", append([]byte{0x00, 0x00, 0x00, 0x0c}, 0x01, 0x02)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.Decrypt(tt.msg)
			if !errors.Is(err, common.ErrMalformedCiphertext) {
				t.Errorf("expected ErrMalformedCiphertext, got %v", err)
			}
		})
	}
}

func TestDecrypt_AuthFailureIsTyped(t *testing.T) {
	k := testKey(t)

	msg, err := k.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	msg[len(msg)-1] ^= 0xFF

	_, err = k.Decrypt(msg)
	if !errors.Is(err, common.ErrDecryptFailed) {
		t.Errorf("expected ErrDecryptFailed, got %v", err)
	}
}

func frame(t *testing.T, nonceLen int) []byte {
	t.Helper()
	msg := make([]byte, 4+32)
	binary.BigEndian.PutUint32(msg, uint32(nonceLen))
	return msg
}
