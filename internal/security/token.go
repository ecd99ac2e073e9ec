package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/igifu/campus-meals/internal/models"
)

const tokenIssuer = "campus-meals"

// ErrMissingSecret indicates JWT signing was attempted without a secret.
var ErrMissingSecret = errors.New("jwt secret is not configured")

// Claims carries the authenticated account in a bearer token.
type Claims struct {
	UserID uint64      `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for user valid for ttl.
func IssueToken(secret string, user models.User, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a signed token and returns its claims.
func ParseToken(secret, token string) (*Claims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	claims := &Claims{}
	parsed, errParse := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if errParse != nil {
		return nil, errParse
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == 0 || !claims.Role.Valid() {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
