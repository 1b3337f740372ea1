// Package partners implements the authenticated lead-ingestion API used by
// external partner platforms.
package partners

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
)

// PhoneCipher decrypts partner-submitted phone numbers (RSA-OAEP over
// SHA-256) and checks them against the accompanying SHA-256 digest.
type PhoneCipher struct {
	key *rsa.PrivateKey
}

// NewPhoneCipher parses a PEM-encoded RSA private key. Both PKCS#1 and
// PKCS#8 encodings are accepted.
func NewPhoneCipher(pemData string) (*PhoneCipher, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in partner key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &PhoneCipher{key: key}, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse partner key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("partner key is %T, want RSA", parsed)
	}
	return &PhoneCipher{key: key}, nil
}

// Decrypt returns the plaintext phone from a base64 RSA-OAEP ciphertext.
func (c *PhoneCipher) Decrypt(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decode encrypted phone: %w", err)
	}

	plain, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, c.key, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt phone: %w", err)
	}
	return string(plain), nil
}

// HashPhone is the canonical digest partners compute over the plaintext
// phone: lowercase hex SHA-256.
func HashPhone(phone string) string {
	sum := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(sum[:])
}

// VerifyPhoneHash checks a submitted 64-hex digest against the decrypted
// phone.
func VerifyPhoneHash(phone, submittedHash string) bool {
	return HashPhone(phone) == strings.ToLower(strings.TrimSpace(submittedHash))
}
