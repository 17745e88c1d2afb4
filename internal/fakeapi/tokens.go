package fakeapi

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	accessTokenType  = "access"
	refreshTokenType = "refresh"
)

// hmacSigner issues and verifies HS256 tokens shaped like the API's.
type hmacSigner struct {
	secret []byte
}

func (h hmacSigner) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

func (h hmacSigner) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

// issue signs a token of tokenType for userID valid for ttl from now.
func (a *API) issue(userID int, tokenType string, ttl time.Duration) string {
	now := a.nowFunc()
	jti := uuid.NewString()
	if tokenType == accessTokenType {
		a.mu.Lock()
		a.issued = append(a.issued, jti)
		a.mu.Unlock()
	}
	claims := jwt.MapClaims{
		"token_type": tokenType,
		"user_id":    strconv.Itoa(userID),
		"jti":        jti,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	signed, err := a.signer.sign(claims)
	if err != nil {
		panic(err)
	}
	return signed
}

// verify parses raw, checks its signature, expiry and type, and returns the user id.
func (a *API) verify(raw, tokenType string) (int, error) {
	parsed, err := jwt.Parse(raw, a.signer.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.nowFunc),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return 0, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["token_type"] != tokenType {
		return 0, errors.New("wrong token type")
	}
	jti, _ := claims["jti"].(string)
	a.mu.Lock()
	_, revoked := a.revoked[jti]
	a.mu.Unlock()
	if revoked {
		return 0, errors.New("token revoked")
	}
	id, _ := claims["user_id"].(string)
	userID, err := strconv.Atoi(id)
	if err != nil {
		return 0, errors.Wrap(err, "user_id")
	}
	return userID, nil
}
