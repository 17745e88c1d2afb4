// Package auth talks to the API's authentication endpoints: password login, token refresh and the
// admin OTP password reset.
package auth

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-moto-client/resource"
	"github.com/jrsteele09/go-moto-client/session"
	"github.com/jrsteele09/go-moto-client/transport"
	"github.com/pkg/errors"
)

const (
	otpRequestPath = "/admin/otp/request/"
	otpVerifyPath  = "/admin/otp/verify/"
	otpConfirmPath = "/admin/otp/confirm/"
)

// OTPRequest asks for a one time code to be mailed to an admin.
type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// OTPCheck is a code to verify without consuming it.
type OTPCheck struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// OTPConfirm resets the admin's password with a mailed code.
type OTPConfirm struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// Message is the acknowledgement body of the OTP endpoints.
type Message struct {
	Message string `json:"message"`
}

type confirmResponse struct {
	Message string `json:"message"`
	session.Tokens
}

// API is the client of the authentication endpoints.
type API struct {
	tr resource.Sender
}

var _ session.TokenAPI = (*API)(nil)

func New(tr resource.Sender) *API {
	return &API{tr: tr}
}

// Login exchanges credentials for a token pair.
func (a *API) Login(ctx context.Context, creds session.Credentials) (session.Tokens, error) {
	var tokens session.Tokens
	err := a.tr.Do(ctx, transport.Request{Method: http.MethodPost, Path: transport.LoginPath, Body: creds}, &tokens)
	if err != nil {
		return session.Tokens{}, err
	}
	if tokens.Access == "" {
		return session.Tokens{}, errors.Wrap(MissingAccessTokenErr, "[API.Login]")
	}
	if tokens.Refresh == "" {
		return session.Tokens{}, errors.Wrap(MissingRefreshTokenErr, "[API.Login]")
	}
	return tokens, nil
}

// Refresh exchanges a refresh token for a new access token.
func (a *API) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var out struct {
		Access string `json:"access"`
	}
	body := map[string]string{"refresh": refreshToken}
	if err := a.tr.Do(ctx, transport.Request{Method: http.MethodPost, Path: transport.RefreshPath, Body: body}, &out); err != nil {
		return "", err
	}
	if out.Access == "" {
		return "", errors.Wrap(MissingAccessTokenErr, "[API.Refresh]")
	}
	return out.Access, nil
}

// RequestOTP mails a code to email if it belongs to an active admin. The API answers the same
// way for unknown addresses.
func (a *API) RequestOTP(ctx context.Context, in OTPRequest) (Message, error) {
	var out Message
	err := a.tr.Do(ctx, transport.Request{Method: http.MethodPost, Path: otpRequestPath, Body: in}, &out)
	return out, err
}

// VerifyOTP checks a code before the new password is chosen.
func (a *API) VerifyOTP(ctx context.Context, in OTPCheck) (Message, error) {
	var out Message
	err := a.tr.Do(ctx, transport.Request{Method: http.MethodPost, Path: otpVerifyPath, Body: in}, &out)
	return out, err
}

// ConfirmOTP resets the password. The API logs the admin in and returns a token pair.
func (a *API) ConfirmOTP(ctx context.Context, in OTPConfirm) (session.Tokens, error) {
	var out confirmResponse
	if err := a.tr.Do(ctx, transport.Request{Method: http.MethodPost, Path: otpConfirmPath, Body: in}, &out); err != nil {
		return session.Tokens{}, err
	}
	if out.Access == "" || out.Refresh == "" {
		return session.Tokens{}, errors.Wrap(MissingRefreshTokenErr, "[API.ConfirmOTP]")
	}
	return out.Tokens, nil
}
