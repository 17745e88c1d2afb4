package mutation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-moto-client/apierror"
	"github.com/jrsteele09/go-moto-client/cache"
	"github.com/jrsteele09/go-moto-client/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Kind is the kind of change a mutation makes.
type Kind string

const (
	Create Kind = "create"
	Update Kind = "update"
	Delete Kind = "delete"
	// Action covers sub-resource changes such as uploading or reordering images.
	Action Kind = "action"
)

// Operation describes one mutation. Key is the resource being changed (empty for a create);
// Affects lists further key prefixes whose cached reads the change makes stale.
type Operation struct {
	Kind    Kind
	Key     cache.Key
	Payload any
	Affects []cache.Key
}

// Error is a failed mutation. Kind and Fields come from the API, or from local validation when
// the payload was rejected before being sent.
type Error struct {
	Op      Kind
	Key     cache.Key
	Kind    apierror.Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	target := e.Key.String()
	if target == "" {
		target = "new resource"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Op, target, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Invalidator is the part of the cache a pipeline needs.
type Invalidator interface {
	Invalidate(prefixes ...cache.Key)
}

// Pipeline sends mutations and keeps the cache consistent with their outcome.
type Pipeline struct {
	cache    Invalidator
	validate *validator.Validate
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

type PipelineOption func(*Pipeline)

func WithLogger(logger zerolog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func New(c Invalidator, options ...PipelineOption) *Pipeline {
	p := &Pipeline{
		cache:    c,
		validate: newValidator(),
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.New(nil)
	}
	return p
}

// Mutate validates op.Payload, then calls send exactly once. On success every key in op.Key and
// op.Affects is invalidated as a prefix; on failure the cache is left as it was and the failure
// is returned as an *Error.
func Mutate[T any](ctx context.Context, p *Pipeline, op Operation, send func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if fields := p.check(op.Payload); len(fields) > 0 {
		p.metrics.Mutation(string(op.Kind), "invalid")
		verr := &apierror.Error{Kind: apierror.ValidationFailed, Message: "invalid payload", Fields: fields}
		return zero, &Error{Op: op.Kind, Key: op.Key, Kind: verr.Kind, Message: verr.Message, Fields: fields, Err: verr}
	}

	v, err := send(ctx)
	if err != nil {
		merr := &Error{Op: op.Kind, Key: op.Key, Kind: apierror.KindOf(err), Err: err}
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) {
			merr.Message = apiErr.Message
			merr.Fields = apiErr.Fields
		}
		p.metrics.Mutation(string(op.Kind), "failure")
		p.logger.Info().Str("operation", string(op.Kind)).Str("key", op.Key.String()).Str("kind", string(merr.Kind)).Msg("mutation failed")
		return zero, merr
	}

	affected := make([]cache.Key, 0, len(op.Affects)+1)
	for _, key := range append([]cache.Key{op.Key}, op.Affects...) {
		if len(key) > 0 {
			affected = append(affected, key)
		}
	}
	p.cache.Invalidate(affected...)
	p.metrics.Mutation(string(op.Kind), "success")
	return v, nil
}

// check runs struct validation on payload and returns field messages keyed by JSON path.
func (p *Pipeline) check(payload any) map[string]string {
	if payload == nil {
		return nil
	}
	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	err := p.validate.Struct(v.Interface())
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = message(fe)
	}
	return fields
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// fieldPath drops the top level struct name from the namespace: "Input.social_media.facebook"
// becomes "social_media.facebook".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "url":
		return "Enter a valid URL."
	case "numeric", "number":
		return "A valid number is required."
	case "oneof":
		return fmt.Sprintf("Select a valid choice: %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "len":
		return fmt.Sprintf("Ensure this field has exactly %s characters.", fe.Param())
	case "gt":
		return fmt.Sprintf("Ensure this value is greater than %s.", fe.Param())
	case "datetime":
		return fmt.Sprintf("Enter a valid time (%s).", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed the %q check.", fe.Tag())
	}
}
