package partners

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"
)

func testCipher(t *testing.T) (*PhoneCipher, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	cipher, err := NewPhoneCipher(string(pemData))
	if err != nil {
		t.Fatalf("NewPhoneCipher: %v", err)
	}
	return cipher, &key.PublicKey
}

func encryptPhone(t *testing.T, pub *rsa.PublicKey, phone string) string {
	t.Helper()
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(phone), nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return base64.StdEncoding.EncodeToString(ct)
}

func TestPhoneCipherRoundTrip(t *testing.T) {
	cipher, pub := testCipher(t)

	encrypted := encryptPhone(t, pub, "+2348012345678")
	got, err := cipher.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "+2348012345678" {
		t.Errorf("Decrypt = %q, want +2348012345678", got)
	}
}

func TestPhoneCipherPKCS8(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	if _, err := NewPhoneCipher(string(pemData)); err != nil {
		t.Fatalf("NewPhoneCipher with PKCS#8 key: %v", err)
	}
}

func TestPhoneCipherRejectsGarbage(t *testing.T) {
	cipher, _ := testCipher(t)

	if _, err := cipher.Decrypt("not base64 at all!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := cipher.Decrypt(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("expected error for undecryptable ciphertext")
	}
}

func TestVerifyPhoneHash(t *testing.T) {
	phone := "+2348012345678"
	hash := HashPhone(phone)

	if len(hash) != 64 {
		t.Fatalf("hash length = %d, want 64", len(hash))
	}
	if !VerifyPhoneHash(phone, hash) {
		t.Error("matching hash rejected")
	}
	if !VerifyPhoneHash(phone, " "+strings.ToUpper(hash)+" ") {
		t.Error("hash comparison should ignore case and surrounding whitespace")
	}
	if VerifyPhoneHash("+15551234567", hash) {
		t.Error("hash for a different phone accepted")
	}
}
