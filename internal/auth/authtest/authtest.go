// Package authtest mints tokens accepted by auth.JWTVerifier for use in tests.
package authtest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"careerforge/internal/auth"
	"careerforge/pkg/types"
)

// Token signs an HS256 token for the given principal valid for one hour
func Token(secret []byte, userID string, role types.Role) string {
	return TokenWithClaims(secret, auth.Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
}

// TokenWithClaims signs arbitrary claims with HS256
func TokenWithClaims(secret []byte, claims auth.Claims) string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		panic(err)
	}
	return signed
}
