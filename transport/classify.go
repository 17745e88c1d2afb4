package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jrsteele09/go-moto-client/apierror"
)

const maxMessageLen = 200

// classify maps a completed HTTP exchange to nil or an *apierror.Error.
func classify(method, path string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	message, fields := parseErrorBody(body)
	e := &apierror.Error{Status: status, Method: method, Path: path, Message: message}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = apierror.AuthExpired
	case status == http.StatusForbidden:
		e.Kind = apierror.Forbidden
	case status == http.StatusNotFound:
		e.Kind = apierror.NotFound
	case status >= 500:
		e.Kind = apierror.ServiceUnavailable
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || (status >= 400 && len(fields) > 0):
		e.Kind = apierror.ValidationFailed
		e.Fields = fields
	default:
		e.Kind = apierror.Unknown
	}
	return e
}

// classifyNetwork maps a failed round trip. Timeouts, refused connections and DNS failures are
// all ServiceUnavailable; a caller cancelling its own context is not.
func classifyNetwork(ctx context.Context, method, path string, err error) error {
	kind := apierror.ServiceUnavailable
	if errors.Is(ctx.Err(), context.Canceled) {
		kind = apierror.Unknown
		err = ctx.Err()
	}
	return &apierror.Error{Kind: kind, Method: method, Path: path, Err: err}
}

// parseErrorBody understands the error shapes the API produces:
//
//	{"detail": "..."}
//	{"error": "...", "details": {"field": ["..."]}}
//	{"field": ["...", "..."], "nested": {"field": ["..."]}}
func parseErrorBody(body []byte) (string, map[string]string) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		var list []string
		if json.Unmarshal(body, &list) == nil {
			return strings.Join(list, "; "), nil
		}
		return truncate(string(body)), nil
	}

	var message string
	for _, key := range []string{"detail", "error", "message"} {
		if s, ok := payload[key].(string); ok && s != "" {
			message = s
			break
		}
	}

	fields := map[string]string{}
	for key, value := range payload {
		switch key {
		case "detail", "error", "message":
			continue
		case "details":
			flatten("", value, fields)
		default:
			flatten(key, value, fields)
		}
	}
	if len(fields) == 0 {
		return message, nil
	}
	return message, fields
}

func flatten(prefix string, value any, out map[string]string) {
	switch v := value.(type) {
	case string:
		if prefix != "" {
			out[prefix] = v
		}
	case []any:
		msgs := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				msgs = append(msgs, s)
			}
		}
		if prefix != "" && len(msgs) > 0 {
			out[prefix] = strings.Join(msgs, "; ")
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			name := k
			if prefix != "" {
				name = prefix + "." + k
			}
			flatten(name, v[k], out)
		}
	}
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
