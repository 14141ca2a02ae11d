// Package jwt inspects access tokens issued by the marketplace auth service.
// The console cannot verify signatures; it only reads claims to catch
// tokens that are already expired before presenting them to the chat server.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Type     string   `json:"type"` // "access" or "refresh"
}

// User returns the user the token was issued to.
func (c *Claims) User() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

var parser = jwt.NewParser()

// Inspect decodes tokenString without verifying its signature and checks
// expiry against now. A string that is not a JWT yields ErrInvalidToken.
func Inspect(tokenString string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return claims, ErrExpiredToken
	}
	if claims.Type == "refresh" {
		return claims, ErrInvalidToken
	}
	return claims, nil
}
