// internal/auth/devtoken.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// privateKey and publicKey sign and verify dev-tools tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
)

// devSubject is the sub claim carried by dev-tools tokens.
const devSubject = "dev-tools"

// Init generates a fresh ed25519 key pair at runtime. Tokens are only
// honored by the process that minted them; a restart invalidates them all.
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return nil
}

// CreateDevToken mints a signed token granting dev-tools access for ttl.
// A ttl of 0 means no expiry.
func CreateDevToken(ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": devSubject,
		"iat": time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateDevToken verifies a dev-tools token string.
func AuthenticateDevToken(tokenString string) error {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid jwt claims")
	}
	if sub, ok := claims["sub"].(string); !ok || sub != devSubject {
		return fmt.Errorf("token does not grant dev-tools access")
	}
	return nil
}
