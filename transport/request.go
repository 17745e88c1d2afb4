package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
)

// Paths of the endpoints that must never carry a bearer token nor trigger a refresh.
const (
	LoginPath   = "/login/"
	RefreshPath = "/token/refresh/"
)

// Request describes one API call. Path is relative to the client's base URL; an absolute URL
// (such as a pagination "next" link) is used as is.
type Request struct {
	Method       string
	Path         string
	Query        url.Values
	Body         any
	Multipart    *Multipart
	RequiresAuth bool
}

// Multipart is a multipart/form-data body.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

// FilePart is one file of a multipart body.
type FilePart struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Response is a successful API response with its body fully read.
type Response struct {
	StatusCode int
	Header     map[string][]string
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isAuthEndpoint(path string) bool {
	return strings.HasSuffix(path, LoginPath) || strings.HasSuffix(path, RefreshPath)
}

// encodeBody renders the request body once so the same bytes can be replayed after a refresh.
func encodeBody(req Request) ([]byte, string, error) {
	switch {
	case req.Multipart != nil:
		return encodeMultipart(req.Multipart)
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %w", err)
		}
		return data, "application/json", nil
	default:
		return nil, "", nil
	}
}

func encodeMultipart(m *Multipart) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range m.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("encode multipart field %s: %w", name, err)
		}
	}
	for _, f := range m.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.Field), escapeQuotes(f.Name)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("encode multipart file %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("encode multipart file %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
