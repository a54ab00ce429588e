// Package auth issues and verifies the signed session tokens handed out at login.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carelogix/go-vaxtrack/internal/domain/identity"
)

// Claims carries the authenticated session inside an HS256 token.
type Claims struct {
	PersonID  int64  `json:"person_id"`
	FirstName string `json:"first_name"`
	Role      string `json:"role"`
	ProfileID int64  `json:"profile_id"`
	jwt.RegisteredClaims
}

// NewAccessToken signs a token for the given session.
func NewAccessToken(secret, issuer string, ttl time.Duration, s identity.Session) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		PersonID:  s.PersonID,
		FirstName: s.FirstName,
		Role:      string(s.Role.Kind),
		ProfileID: s.Role.ProfileID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", s.PersonID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies the signature and expiry and returns the claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Session reconstructs the identity session carried by the claims.
func (c *Claims) Session() (identity.Session, error) {
	kind, err := identity.ParseRoleKind(c.Role)
	if err != nil {
		return identity.Session{}, err
	}
	return identity.Session{
		PersonID:  c.PersonID,
		FirstName: c.FirstName,
		Role:      identity.Role{Kind: kind, ProfileID: c.ProfileID},
	}, nil
}
