package auth

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// APIKey is a machine credential bound to one org. Only the bcrypt hash is configured.
type APIKey struct {
	Name  string    `yaml:"name"`
	OrgID uuid.UUID `yaml:"org_id"`
	Role  string    `yaml:"role"`
	Hash  string    `yaml:"hash"`
}

// HashAPIKey returns the bcrypt hash to place in configuration.
func HashAPIKey(raw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// KeyRing authenticates raw API keys against configured hashes.
type KeyRing []APIKey

// Authenticate returns claims for the key whose hash matches raw.
func (k KeyRing) Authenticate(raw string) (*Claims, bool) {
	if raw == "" {
		return nil, false
	}
	for _, key := range k {
		if key.OrgID == uuid.Nil {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(key.Hash), []byte(raw)) == nil {
			return &Claims{OrgID: key.OrgID, Role: key.Role}, true
		}
	}
	return nil, false
}
