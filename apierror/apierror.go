// Package apierror defines the failure taxonomy shared by the transport, cache and mutation layers.
package apierror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failed API interaction.
type Kind string

const (
	AuthExpired        Kind = "auth_expired"
	Forbidden          Kind = "forbidden"
	NotFound           Kind = "not_found"
	ServiceUnavailable Kind = "service_unavailable"
	ValidationFailed   Kind = "validation_failed"
	Unknown            Kind = "unknown"
)

var kinds = []Kind{AuthExpired, Forbidden, NotFound, ServiceUnavailable, ValidationFailed, Unknown}

// ParseKind maps a configuration string such as "not_found" to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown error kind %q", s)
}

// Error is a classified API failure. Fields holds field level validation messages when the
// server returned a structured payload.
type Error struct {
	Kind    Kind
	Status  int
	Method  string
	Path    string
	Message string
	Fields  map[string]string
	Err     error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Method != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.Path)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "; %s: %s", name, e.Fields[name])
		}
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, &Error{Kind: NotFound}) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Status == 0 && t.Path == "" && t.Message == ""
}

// KindOf returns the Kind of the first *Error in err's chain, Unknown for any other
// error and an empty Kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return Unknown
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldsOf returns the field level validation messages carried by err, if any.
func FieldsOf(err error) map[string]string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Fields
	}
	return nil
}
