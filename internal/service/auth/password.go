// internal/service/auth/password.go
package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptVerifier checks passwords against bcrypt hashes.
type BcryptVerifier struct {
	cost int
}

func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptVerifier{cost: cost}
}

func (v *BcryptVerifier) Verify(rawPassword, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(rawPassword)) == nil
}

// Hash is used by seeding and tests.
func (v *BcryptVerifier) Hash(rawPassword string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(rawPassword), v.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
