package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

// Claims is the token body understood by the verifier
// Subject carries the user id; Role carries STUDENT, MENTOR or ADMIN.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Config configures the HMAC verifier
type Config struct {
	Secret []byte
	// Issuer is enforced only when non-empty
	Issuer string
	Leeway time.Duration
}

// JWTVerifier validates HMAC-signed bearer tokens
type JWTVerifier struct {
	cfg    Config
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier; tokens are only ever verified here, never issued
func NewJWTVerifier(cfg Config) (*JWTVerifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &JWTVerifier{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

// Verify parses the credential and derives the principal
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (types.Principal, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return types.Principal{}, ErrMissingCredential
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		// TECHNICAL DISCOVERY: Method check guards against alg-swapping even with WithValidMethods set
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.cfg.Secret, nil
	})
	if err != nil {
		return types.Principal{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return types.Principal{}, ErrInvalidCredential
	}

	if !types.IsValidUserID(claims.Subject) {
		return types.Principal{}, fmt.Errorf("%w: %v", ErrInvalidCredential, types.ErrInvalidUserID)
	}
	role, err := types.ParseRole(claims.Role)
	if err != nil {
		return types.Principal{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	return types.Principal{UserID: claims.Subject, Role: role}, nil
}

// Verify interface compliance.
var _ interfaces.TokenVerifier = (*JWTVerifier)(nil)
