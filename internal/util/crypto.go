package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DummyPasswordHash returns a bcrypt hash of random bytes, generated once.
// Comparing against it keeps the unknown-user path as slow as the known-user one.
var DummyPasswordHash = sync.OnceValue(func() string {
	secret := make([]byte, 32)
	rand.Read(secret)
	hash, _ := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
	return string(hash)
})

func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// TokenFingerprint identifies a bearer token in logs without revealing it.
func TokenFingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:8])
}

// MaskCode keeps the first three characters of a pairing code.
func MaskCode(code string) string {
	if len(code) <= 3 {
		return "****"
	}
	return code[:3] + "****"
}
