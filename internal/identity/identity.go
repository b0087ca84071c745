// internal/identity/identity.go
//
// Identity input boundary. The core treats identity as two opaque strings
// supplied by an external auth component; this package only consumes
// already-issued HS256 tokens carrying id/username claims. Issuance,
// passwords, and account lifecycle are out of scope.

package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the external identity the core consumes.
type Identity struct {
	ID          string
	DisplayName string
}

var ErrInvalidToken = errors.New("identity: invalid token")

// FromToken verifies an externally issued HS256 JWT and extracts the
// identity claims.
func FromToken(tokenStr, secret string) (*Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" || username == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{ID: id, DisplayName: username}, nil
}
