package authz

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminKey gates the schedule administration surface with a single shared
// key, stored hashed so the env var can hold a bcrypt digest instead of the
// secret itself.
type AdminKey struct {
	hash []byte
}

// NewAdminKey accepts either a bcrypt digest ($2a$/$2b$ prefix) or, for dev
// setups, a plaintext key that is hashed on startup.
func NewAdminKey(configured string) (*AdminKey, error) {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return nil, nil
	}
	if strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") {
		return &AdminKey{hash: []byte(configured)}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(configured), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &AdminKey{hash: hash}, nil
}

func (k *AdminKey) Verify(r *http.Request) bool {
	if k == nil {
		return false
	}
	presented := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
	if presented == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(k.hash, []byte(presented)) == nil
}
