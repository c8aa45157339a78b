package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost balances hashing time against brute-force cost.
const DefaultBcryptCost = 12

// apiKeyPrefix marks keys in logs and config files.
const apiKeyPrefix = "tm_"

// KeyHasher hashes and verifies API keys.
type KeyHasher struct {
	cost int
}

// NewKeyHasher uses DefaultBcryptCost.
func NewKeyHasher() *KeyHasher {
	return &KeyHasher{cost: DefaultBcryptCost}
}

// NewKeyHasherWithCost is for tests, which use bcrypt.MinCost.
func NewKeyHasherWithCost(cost int) *KeyHasher {
	return &KeyHasher{cost: cost}
}

// Hash returns the bcrypt hash of key.
func (h *KeyHasher) Hash(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether key matches hash.
func (h *KeyHasher) Verify(key, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// GenerateAPIKey returns a new random key and its hash. The plain key is
// shown once and never stored.
func (h *KeyHasher) GenerateAPIKey() (key, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	key = apiKeyPrefix + hex.EncodeToString(buf)
	hash, err = h.Hash(key)
	if err != nil {
		return "", "", fmt.Errorf("hash api key: %w", err)
	}
	return key, hash, nil
}
