package auth

import "errors"

var (
	MissingAccessTokenErr  = errors.New("response is missing the access token")
	MissingRefreshTokenErr = errors.New("response is missing the refresh token")
)
