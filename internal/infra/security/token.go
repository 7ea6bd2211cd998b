package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// AdminTokenPrefix marks minted admin tokens so they are recognisable in
// secret scanners and logs.
const AdminTokenPrefix = "ink_adm_"

const (
	defaultTokenBytes = 32
	// bcrypt ignores input past 72 bytes.
	maxTokenBytes = (72 - len(AdminTokenPrefix)) * 3 / 4
)

var ErrTokenSize = errors.New("token: size exceeds bcrypt input limit")

// RandomTokenGenerator mints admin bearer tokens for ADMIN_TOKEN_HASH.
type RandomTokenGenerator struct {
	Size int
}

func (g RandomTokenGenerator) NewToken() (string, error) {
	size := g.Size
	if size <= 0 {
		size = defaultTokenBytes
	}
	if size > maxTokenBytes {
		return "", fmt.Errorf("%w: %d > %d", ErrTokenSize, size, maxTokenBytes)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: entropy read failed: %w", err)
	}
	return AdminTokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// IsAdminToken reports whether raw looks like a minted admin token.
func IsAdminToken(raw string) bool {
	body, ok := strings.CutPrefix(raw, AdminTokenPrefix)
	if !ok || body == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(body)
	return err == nil
}
