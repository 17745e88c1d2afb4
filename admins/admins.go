// Package admins is the super-admin manager: it lists, creates and deletes the accounts that can
// use the back office.
package admins

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jrsteele09/go-moto-client/apierror"
	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/mutation"
	"github.com/jrsteele09/go-moto-client/resource"
	"github.com/jrsteele09/go-moto-client/transport"
)

const (
	listPath   = "/superadmin/admins/"
	createPath = "/superadmin/admins/create/"
)

// ListKey holds privileged data and is dropped on logout.
var ListKey = cache.Key{"admins"}

type Admin struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
	IsActive    bool   `json:"is_active"`
}

type Input struct {
	Email       string `json:"email" validate:"required,email"`
	Username    string `json:"username" validate:"max=150"`
	Password    string `json:"password" validate:"required,min=8"`
	IsSuperuser bool   `json:"is_superuser"`
}

type listResponse struct {
	Admins []Admin `json:"admins"`
}

type Service struct {
	tr       resource.Sender
	cache    *cache.Cache
	pipeline *mutation.Pipeline
	policy   cache.Policy
}

func New(tr resource.Sender, c *cache.Cache, p *mutation.Pipeline, policy cache.Policy) *Service {
	return &Service{tr: tr, cache: c, pipeline: p, policy: policy}
}

// List returns every admin account. Only super admins may call it.
func (s *Service) List(ctx context.Context) ([]Admin, error) {
	fetch := func(ctx context.Context) ([]Admin, error) {
		var out listResponse
		if err := s.tr.Do(ctx, transport.Request{Method: http.MethodGet, Path: listPath, RequiresAuth: true}, &out); err != nil {
			return nil, err
		}
		if out.Admins == nil {
			return []Admin{}, nil
		}
		return out.Admins, nil
	}
	return cache.Read(ctx, s.cache, ListKey, fetch, s.policy)
}

// Create adds an admin. Weak passwords are refused before anything is sent.
func (s *Service) Create(ctx context.Context, in Input) (Admin, error) {
	op := mutation.Operation{Kind: mutation.Create, Payload: in, Affects: []cache.Key{ListKey}}
	return mutation.Mutate(ctx, s.pipeline, op, func(ctx context.Context) (Admin, error) {
		if err := CheckPassword(in.Password); err != nil {
			return Admin{}, &apierror.Error{Kind: apierror.ValidationFailed, Fields: map[string]string{"password": err.Error()}}
		}
		var out Admin
		err := s.tr.Do(ctx, transport.Request{Method: http.MethodPost, Path: createPath, Body: in, RequiresAuth: true}, &out)
		return out, err
	})
}

// Delete removes an admin. The API refuses to delete the caller's own account.
func (s *Service) Delete(ctx context.Context, id int) error {
	op := mutation.Operation{Kind: mutation.Delete, Key: ListKey}
	_, err := mutation.Mutate(ctx, s.pipeline, op, func(ctx context.Context) (struct{}, error) {
		var out struct {
			Success bool `json:"success"`
		}
		path := listPath + strconv.Itoa(id) + "/"
		if err := s.tr.Do(ctx, transport.Request{Method: http.MethodDelete, Path: path, RequiresAuth: true}, &out); err != nil {
			return struct{}{}, err
		}
		if !out.Success {
			return struct{}{}, &apierror.Error{Kind: apierror.Unknown, Method: http.MethodDelete, Path: path, Message: "delete was not acknowledged"}
		}
		return struct{}{}, nil
	})
	return err
}

// Password rules enforced locally before an account is created.
var (
	ErrPasswordTooShort = errors.New("use at least 8 characters")
	ErrPasswordNoUpper  = errors.New("add an upper case letter")
	ErrPasswordNoLower  = errors.New("add a lower case letter")
	ErrPasswordNoDigit  = errors.New("add a digit")
)

const minPasswordRuneCount = 8

// CheckPassword returns the first rule password breaks, or nil.
func CheckPassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordRuneCount {
		return ErrPasswordTooShort
	}
	switch {
	case strings.IndexFunc(password, unicode.IsUpper) < 0:
		return ErrPasswordNoUpper
	case strings.IndexFunc(password, unicode.IsLower) < 0:
		return ErrPasswordNoLower
	case strings.IndexFunc(password, unicode.IsDigit) < 0:
		return ErrPasswordNoDigit
	}
	return nil
}
