package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a token cannot be decoded as a JWT.
var ErrMalformed = errors.New("malformed token")

// Claims is the locally decoded payload of an access token. The signature is not verified;
// the server stays the authority on validity, the client only uses the payload to avoid
// sending tokens it already knows are dead.
type Claims struct {
	UserID    string
	TokenType string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Inspect decodes raw without verifying its signature.
func Inspect(raw string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMalformed
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: error extracting claims", ErrMalformed)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: exp: %v", ErrMalformed, err)
	}
	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("%w: iat: %v", ErrMalformed, err)
	}

	c := &Claims{
		UserID:    stringClaim(claims["user_id"]),
		TokenType: stringClaim(claims["token_type"]),
		JTI:       stringClaim(claims["jti"]),
	}
	if exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat != nil {
		c.IssuedAt = iat.Time
	}
	return c, nil
}

// ExpiresAt returns the embedded expiry of raw, or the zero time when it has none.
func ExpiresAt(raw string) (time.Time, error) {
	c, err := Inspect(raw)
	if err != nil {
		return time.Time{}, err
	}
	return c.ExpiresAt, nil
}

// IsExpired reports whether raw should be treated as dead at now. Empty and malformed tokens
// are expired. A token without an exp claim never expires locally.
func IsExpired(raw string, now time.Time) bool {
	c, err := Inspect(raw)
	if err != nil {
		return true
	}
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

func stringClaim(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
