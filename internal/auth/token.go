package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims mirrors the payload of server-issued tokens. The server writes
// UserId as a string and Roles as a comma-joined string; both are tolerated
// in numeric/array form as well.
type Claims struct {
	UserID FlexID `json:"UserId"`
	Roles  string `json:"Roles"`
	jwt.RegisteredClaims
}

// FlexID decodes a user id that may arrive as a JSON string or number.
type FlexID int64

func (f *FlexID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = FlexID(n)
	return nil
}

// ParseClaims decodes token claims without signature verification. Signing
// secrets live server-side only; the client just needs the payload, same as
// the server trusts the token on every API call anyway.
func ParseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserIDFromToken extracts the numeric user id from an access token.
func UserIDFromToken(tokenString string) (int64, error) {
	claims, err := ParseClaims(tokenString)
	if err != nil {
		return 0, err
	}
	if claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return int64(claims.UserID), nil
}

// HasRole reports whether the token carries the given role.
func (c *Claims) HasRole(role string) bool {
	return strings.Contains(c.Roles, role)
}

// CheckNotExpired returns ErrTokenExpired when the token has an exp claim in
// the past. Tokens without exp pass.
func CheckNotExpired(tokenString string) error {
	claims, err := ParseClaims(tokenString)
	if err != nil {
		return err
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return ErrTokenExpired
	}
	return nil
}
