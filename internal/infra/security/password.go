package security

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.cost()
	out, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (h BcryptHasher) cost() int {
	if h.Cost >= bcrypt.MinCost {
		return h.Cost
	}
	return bcrypt.DefaultCost
}

var (
	ErrUnauthorized = errors.New("security: unauthorized")
	ErrForbidden    = errors.New("security: forbidden")
)

// AdminTokens checks bearer tokens against a bcrypt hash. With no hash
// configured, Open decides whether every caller is treated as admin.
type AdminTokens struct {
	Hash   string
	Open   bool
	Hasher BcryptHasher
}

// Enabled reports whether tokens are actually checked.
func (a AdminTokens) Enabled() bool {
	return strings.TrimSpace(a.Hash) != ""
}

func (a AdminTokens) Verify(token string) error {
	if !a.Enabled() {
		if a.Open {
			return nil
		}
		return ErrUnauthorized
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrUnauthorized
	}
	if err := a.Hasher.Compare(a.Hash, token); err != nil {
		return ErrUnauthorized
	}
	return nil
}
