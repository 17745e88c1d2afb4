package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-moto-client/token"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name string
		raw  func(t *testing.T) string
		want bool
	}{
		{"empty", func(*testing.T) string { return "" }, true},
		{"garbage", func(*testing.T) string { return "not-a-jwt" }, true},
		{"two segments", func(*testing.T) string { return "abc.def" }, true},
		{"future exp", func(t *testing.T) string {
			return sign(t, jwtlib.MapClaims{"exp": now.Add(time.Minute).Unix()})
		}, false},
		{"past exp", func(t *testing.T) string {
			return sign(t, jwtlib.MapClaims{"exp": now.Add(-time.Second).Unix()})
		}, true},
		{"exp equal to now", func(t *testing.T) string {
			return sign(t, jwtlib.MapClaims{"exp": now.Unix()})
		}, true},
		{"no exp", func(t *testing.T) string {
			return sign(t, jwtlib.MapClaims{"user_id": 7})
		}, false},
		{"exp of wrong type", func(t *testing.T) string {
			return sign(t, jwtlib.MapClaims{"exp": "tomorrow"})
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, token.IsExpired(tt.raw(t), now))
		})
	}
}

func TestInspect(t *testing.T) {
	raw := sign(t, jwtlib.MapClaims{
		"token_type": "access",
		"user_id":    42,
		"jti":        "abc123",
		"iat":        now.Unix(),
		"exp":        now.Add(5 * time.Minute).Unix(),
	})

	claims, err := token.Inspect(raw)
	require.NoError(t, err)
	require.Equal(t, "42", claims.UserID)
	require.Equal(t, "access", claims.TokenType)
	require.Equal(t, "abc123", claims.JTI)
	require.True(t, claims.IssuedAt.Equal(now))
	require.True(t, claims.ExpiresAt.Equal(now.Add(5*time.Minute)))

	exp, err := token.ExpiresAt(raw)
	require.NoError(t, err)
	require.True(t, exp.Equal(now.Add(5*time.Minute)))

	_, err = token.Inspect("x.y.z")
	require.ErrorIs(t, err, token.ErrMalformed)
}
