package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

// Customer phone numbers are the only personal data the store holds; they
// get optional at-rest encryption, toggled by environment.
const (
	encryptionSalt = "zapcentral-reminders-v1"
	keyIterations  = 100000
	keySize        = 32
	nonceSize      = 12
)

type encryptor struct {
	gcm cipher.AEAD
}

func NewEncryptor() (*encryptor, error) {
	// With encryption disabled the encryptor passes values through
	if !isEncryptionEnabled() {
		return &encryptor{gcm: nil}, nil
	}

	key, err := deriveKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptor{gcm: gcm}, nil
}

func (e *encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || e.gcm == nil {
		return plaintext, nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	// Nonce is prepended to the ciphertext for storage
	result := append(nonce, ciphertext...)
	return base64.StdEncoding.EncodeToString(result), nil
}

func (e *encryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" || e.gcm == nil {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, encrypted := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

func deriveKey() ([]byte, error) {
	secret := os.Getenv("ZAPCENTRAL_ENCRYPTION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("ZAPCENTRAL_ENCRYPTION_SECRET environment variable is required when encryption is enabled")
	}

	if len(secret) < 32 {
		return nil, fmt.Errorf("encryption secret must be at least 32 characters long")
	}

	key := pbkdf2.Key([]byte(secret), []byte(encryptionSalt), keyIterations, keySize, sha256.New)
	return key, nil
}

func isEncryptionEnabled() bool {
	return os.Getenv("ZAPCENTRAL_ENABLE_ENCRYPTION") == "true"
}
