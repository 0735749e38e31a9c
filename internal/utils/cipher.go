package utils

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// CardCipher protects full card numbers at rest. Seal output is randomized,
// so the store enforces uniqueness on Digest instead.
type CardCipher struct {
	aead    cipher.AEAD
	hmacKey []byte
}

// NewCardCipher builds a cipher from a hex-encoded 32-byte key and an HMAC secret
func NewCardCipher(hexKey, hmacSecret string) (*CardCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	if hmacSecret == "" {
		return nil, fmt.Errorf("hmac secret is empty")
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &CardCipher{aead: aead, hmacKey: []byte(hmacSecret)}, nil
}

// Seal encrypts a card number and returns nonce||ciphertext hex-encoded
func (c *CardCipher) Seal(number string) (string, error) {
	if number == "" {
		return "", fmt.Errorf("input data is empty")
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(number)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(number), nil)
	return hex.EncodeToString(sealed), nil
}

// Open reverses Seal
func (c *CardCipher) Open(sealed string) (string, error) {
	data, err := hex.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}
	if len(data) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}
	nonce, ciphertext := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt card number: %w", err)
	}
	return string(plaintext), nil
}

// Digest returns a deterministic HMAC-SHA256 of the card number
func (c *CardCipher) Digest(number string) string {
	h := hmac.New(sha256.New, c.hmacKey)
	h.Write([]byte(number))
	return hex.EncodeToString(h.Sum(nil))
}
